package sessionauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessionauth/permission"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// CreateUser creates an active account with role. The role must be strictly
// below the actor's own role.
func (e *Engine) CreateUser(ctx context.Context, req *Request, username, pass string, role permission.Role) (*User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	actor, err := req.authz.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !e.resolver.Graph().Has(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, role)
	}
	if err := req.authz.AuthorizeActionByRole(ctx, role, true); err != nil {
		return nil, err
	}

	u, err := e.createUser(ctx, username, pass, role)
	if err != nil {
		e.emitAudit(ctx, auditEvent{eventType: auditEventUserCreated, actorID: actor.ID, err: err})
		return nil, err
	}
	e.logger.WithFields(logrus.Fields{"op": "create_user", "user_id": u.ID, "role": role, "actor_id": actor.ID}).Info("user created")
	e.emitAudit(ctx, auditEvent{
		eventType: auditEventUserCreated,
		userID:    u.ID,
		actorID:   actor.ID,
		success:   true,
		metadata:  map[string]string{"role": string(role)},
	})
	return u, nil
}

// InactivateUser deactivates a subordinate account and revokes all of its
// sessions. Deactivating an inactive account only repeats the revocation.
func (e *Engine) InactivateUser(ctx context.Context, req *Request, username string) error {
	return e.setActive(ctx, req, username, false)
}

// ReactivateUser re-enables a subordinate account. It does not restore sessions.
func (e *Engine) ReactivateUser(ctx context.Context, req *Request, username string) error {
	return e.setActive(ctx, req, username, true)
}

func (e *Engine) setActive(ctx context.Context, req *Request, username string, active bool) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	actor, err := req.authz.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if err := req.authz.AuthorizeAction(ctx, permission.PermissionManageUsers); err != nil {
		return err
	}
	target, err := e.readUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if target.Role == permission.RoleSuperAdmin {
		return fmt.Errorf("%w: cannot change activation of %s", ErrRoleChangeNotPermitted, target.Role)
	}
	if err := req.authz.AuthorizeActionByRole(ctx, target.Role, true); err != nil {
		return err
	}

	updated := *target
	updated.Active = active
	if err := e.updateUser(ctx, &updated); err != nil {
		return err
	}

	eventType := auditEventAccountReactivated
	if !active {
		eventType = auditEventAccountInactivated
		if err := req.revoker.RemoveAllUserAccess(ctx, target.ID); err != nil {
			return err
		}
	}

	e.metrics.Inc(MetricAccountStatusChange)
	e.logger.WithFields(logrus.Fields{
		"op":       "set_active",
		"user_id":  target.ID,
		"active":   active,
		"actor_id": actor.ID,
	}).Info("account activation changed")
	e.emitAudit(ctx, auditEvent{eventType: eventType, userID: target.ID, actorID: actor.ID, success: true})
	return nil
}

// GrantAdmin promotes a user to admin. Only roles above admin may do this.
func (e *Engine) GrantAdmin(ctx context.Context, req *Request, username string) error {
	return e.setAdmin(ctx, req, username, true)
}

// RevokeAdmin demotes an admin to user and revokes all of its sessions so
// the demotion takes effect immediately.
func (e *Engine) RevokeAdmin(ctx context.Context, req *Request, username string) error {
	return e.setAdmin(ctx, req, username, false)
}

func (e *Engine) setAdmin(ctx context.Context, req *Request, username string, admin bool) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	actor, err := req.authz.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if err := req.authz.Authorize(ctx, permission.CanManageRole(permission.RoleAdmin), nil); err != nil {
		return err
	}
	target, err := e.readUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if target.Role == permission.RoleSuperAdmin {
		return fmt.Errorf("%w: cannot change role of %s", ErrRoleChangeNotPermitted, target.Role)
	}

	newRole := permission.RoleUser
	eventType := auditEventAdminRevoked
	if admin {
		newRole = permission.RoleAdmin
		eventType = auditEventAdminGranted
	}
	if target.Role == newRole {
		return nil
	}

	updated := *target
	updated.Role = newRole
	if err := e.updateUser(ctx, &updated); err != nil {
		return err
	}
	if !admin {
		if err := req.revoker.RemoveAllUserAccess(ctx, target.ID); err != nil {
			return err
		}
	}

	e.metrics.Inc(MetricRoleChange)
	e.logger.WithFields(logrus.Fields{
		"op":       "set_admin",
		"user_id":  target.ID,
		"from":     target.Role,
		"to":       newRole,
		"actor_id": actor.ID,
	}).Info("role changed")
	e.emitAudit(ctx, auditEvent{
		eventType: eventType,
		userID:    target.ID,
		actorID:   actor.ID,
		success:   true,
		metadata:  map[string]string{"role": string(newRole)},
	})
	return nil
}

// ListUsers pages through accounts ordered by username. The actor must be
// able to manage the user role. A zero limit means DefaultListLimit.
func (e *Engine) ListUsers(ctx context.Context, req *Request, q ListUsersQuery) ([]User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := req.authz.AuthorizeActionByRole(ctx, permission.RoleUser, true); err != nil {
		return nil, err
	}
	switch {
	case q.Limit < 0 || q.Offset < 0:
		return nil, fmt.Errorf("%w: negative limit or offset", ErrInvalidRequest)
	case q.Limit == 0:
		q.Limit = DefaultListLimit
	case q.Limit > MaxListLimit:
		q.Limit = MaxListLimit
	}

	users, err := e.users.List(ctx, q)
	if err != nil {
		e.metrics.Inc(MetricPersistenceFailure)
		return nil, persistence(err)
	}
	return users, nil
}

// BootstrapSuperAdmin creates a super admin account for operator tooling,
// outside any request. An existing account with that username is returned
// unchanged.
func (e *Engine) BootstrapSuperAdmin(ctx context.Context, username, pass string) (*User, bool, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, false, ErrEngineNotReady
	}
	existing, err := e.readUserByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	u, err := e.createUser(ctx, username, pass, permission.RoleSuperAdmin)
	if err != nil {
		return nil, false, err
	}
	e.logger.WithFields(logrus.Fields{"op": "bootstrap", "user_id": u.ID}).Info("super admin created")
	e.emitAudit(ctx, auditEvent{
		eventType: auditEventUserCreated,
		userID:    u.ID,
		success:   true,
		metadata:  map[string]string{"role": string(permission.RoleSuperAdmin), "source": "bootstrap"},
	})
	return u, true, nil
}
