package sessionauth

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	internalaudit "github.com/MrEthical07/sessionauth/internal/audit"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLogout             = "logout"
	auditEventSignUp             = "signup"
	auditEventRenewal            = "session_renewed"
	auditEventRenewalFailure     = "session_renewal_failed"
	auditEventRevocation         = "access_revoked"
	auditEventPasswordChange     = "password_change"
	auditEventUserCreated        = "user_created"
	auditEventAccountInactivated = "account_inactivated"
	auditEventAccountReactivated = "account_reactivated"
	auditEventAdminGranted       = "admin_granted"
	auditEventAdminRevoked       = "admin_revoked"
)

// AuditErrorCode is the stable error classification carried by audit events.
type AuditErrorCode string

const (
	auditErrNotAuthenticated   AuditErrorCode = "not_authenticated"
	auditErrNotAuthorized      AuditErrorCode = "not_authorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrUsernameTaken      AuditErrorCode = "username_taken"
	auditErrThrottled          AuditErrorCode = "throttled"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogrusSink logs audit events as structured entries.
type LogrusSink = internalaudit.LogrusSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return internalaudit.NewLogrusSink(logger)
}

type auditEvent struct {
	eventType string
	userID    string
	actorID   string
	sessionID string
	success   bool
	err       error
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, ev auditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: ev.eventType,
		UserID:    ev.userID,
		ActorID:   ev.actorID,
		SessionID: ev.sessionID,
		Success:   ev.success,
		Metadata:  ev.metadata,
	}
	if code := auditErrorCode(ev.err); code != "" {
		event.Error = string(code)
	}
	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrAuthentication):
		return auditErrNotAuthenticated
	case errors.Is(err, ErrAuthorization):
		return auditErrNotAuthorized
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrThrottled
	case errors.Is(err, ErrUsernameTaken):
		return auditErrUsernameTaken
	case errors.Is(err, ErrPersistence):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
