package sessionauth

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessionauth/internal/flows"
)

// IdentityResolver turns the request's token into a user id, renewing the
// session when it is close to expiry.
//
// Renewal failures are not fatal: the session was already validated, so the
// failure is logged, counted in MetricRenewalFailure and the resolution
// succeeds without a new token.
type IdentityResolver struct {
	req      *Request
	resolved *Resolution
	token    string
}

// Resolve validates token, loads its session under lock and renews it when
// near expiry. The first successful result is memoized for the request.
//
// Errors: ErrAuthentication for a missing, invalid or expired token or an
// unknown session; ErrPersistence when the session store fails.
func (ir *IdentityResolver) Resolve(ctx context.Context, token string) (Resolution, error) {
	if ir.resolved != nil && ir.token == token {
		return *ir.resolved, nil
	}

	e := ir.req.engine
	unit := ir.req.unit
	start := time.Now()
	res := e.flows.Resolve(ctx, token, unit)
	e.metrics.Observe(MetricResolveLatency, time.Since(start))

	log := e.logger.WithField("op", "resolve")

	switch res.Failure {
	case flows.ResolveFailureNone:
	case flows.ResolveFailureStore:
		_ = unit.Rollback(ctx)
		e.metrics.Inc(MetricPersistenceFailure)
		log.WithError(res.Err).Error("session lookup failed")
		return Resolution{}, persistence(res.Err)
	default:
		_ = unit.Rollback(ctx)
		e.metrics.Inc(MetricAuthenticationFailure)
		reason := resolveFailureReason(res.Failure)
		log.WithField("reason", reason).Debug("authentication rejected")
		return Resolution{}, fmt.Errorf("%w: %s", ErrAuthentication, reason)
	}

	s := res.Session
	log = log.WithFields(logrus.Fields{"user_id": s.UserID, "session_id": s.ID})

	switch {
	case res.RenewErr != nil:
		_ = unit.Rollback(ctx)
		e.metrics.Inc(MetricRenewalFailure)
		log.WithError(res.RenewErr).Warn("session renewal failed, continuing with current expiration")
		e.emitAudit(ctx, auditEvent{
			eventType: auditEventRenewalFailure,
			userID:    s.UserID,
			sessionID: s.ID,
			err:       res.RenewErr,
		})
	case res.RenewedToken != "":
		e.metrics.Inc(MetricRenewalSuccess)
		ir.req.setIssued(res.RenewedToken)
		log.WithField("expiration", s.Expiration).Debug("session renewed")
		e.emitAudit(ctx, auditEvent{
			eventType: auditEventRenewal,
			userID:    s.UserID,
			sessionID: s.ID,
			success:   true,
		})
	default:
		// Nothing was written; commit only releases the row lock.
		if err := unit.Commit(ctx); err != nil {
			log.WithError(err).Debug("releasing session lock failed")
		}
	}

	e.metrics.Inc(MetricAuthenticationSuccess)
	out := Resolution{
		UserID:       s.UserID,
		SessionID:    s.ID,
		Expiration:   s.Expiration,
		RenewedToken: res.RenewedToken,
	}
	ir.resolved = &out
	ir.token = token
	return out, nil
}

// Current resolves the token the request was opened with.
func (ir *IdentityResolver) Current(ctx context.Context) (Resolution, error) {
	return ir.Resolve(ctx, ir.req.token)
}

// CurrentUserID resolves the request token and returns only the user id.
func (ir *IdentityResolver) CurrentUserID(ctx context.Context) (string, error) {
	res, err := ir.Current(ctx)
	if err != nil {
		return "", err
	}
	return res.UserID, nil
}

// forget drops the memoized resolution after the request's own session is removed.
func (ir *IdentityResolver) forget() {
	ir.resolved = nil
	ir.token = ""
}

func resolveFailureReason(kind flows.ResolveFailureKind) string {
	switch kind {
	case flows.ResolveFailureMissingToken:
		return "missing token"
	case flows.ResolveFailureInvalidToken:
		return "invalid token"
	case flows.ResolveFailureSessionNotFound:
		return "session not found"
	case flows.ResolveFailureExpired:
		return "session expired"
	default:
		return "unknown"
	}
}
