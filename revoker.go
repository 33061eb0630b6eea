package sessionauth

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
)

// AccessRevoker deletes every session of a user. It runs inside the request's
// unit of work and commits on success.
type AccessRevoker struct {
	req *Request
}

// RemoveAllUserAccess deletes all sessions of userID. A user without sessions
// is not an error. A renewal racing with revocation may extend a session just
// before it is removed; the session is then invalid on its next use.
func (r *AccessRevoker) RemoveAllUserAccess(ctx context.Context, userID string) error {
	_, err := r.req.engine.revokeAll(ctx, r.req, userID)
	return err
}

// RemoveAllUserAccess deletes all sessions of userID outside any request,
// for operator tooling. It returns how many sessions were removed.
func (e *Engine) RemoveAllUserAccess(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	req := e.NewRequest("")
	defer req.Close(ctx)
	return e.revokeAll(ctx, req, userID)
}

func (e *Engine) revokeAll(ctx context.Context, req *Request, userID string) (int, error) {
	actorID := ""
	if req.authz.user != nil {
		actorID = req.authz.user.ID
	}

	n, err := e.flows.RevokeAll(ctx, userID, req.unit)
	if err != nil {
		_ = req.unit.Rollback(ctx)
		e.metrics.Inc(MetricPersistenceFailure)
		e.logger.WithError(err).WithField("user_id", userID).Error("revoking sessions failed")
		e.emitAudit(ctx, auditEvent{eventType: auditEventRevocation, userID: userID, actorID: actorID, err: err})
		return 0, persistence(err)
	}

	e.metrics.Inc(MetricRevocation)
	e.metrics.Add(MetricSessionsRevoked, uint64(n))
	e.logger.WithFields(logrus.Fields{"user_id": userID, "sessions": n}).Info("revoked all sessions")
	e.emitAudit(ctx, auditEvent{
		eventType: auditEventRevocation,
		userID:    userID,
		actorID:   actorID,
		success:   true,
		metadata:  map[string]string{"sessions": strconv.Itoa(n)},
	})

	if res := req.identity.resolved; res != nil && res.UserID == userID {
		req.identity.forget()
		req.authz.reset()
	}
	return n, nil
}
