package sessionauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessionauth/permission"
)

// AuthorizationContext answers permission and role questions about the
// request's current user. The user and its transitive roles are loaded once
// per request.
//
// The super admin role passes every AuthorizeAction* check except acting on
// itself, which still requires PermissionEditSelf. Authorize evaluates
// policies as written, with no such shortcut.
type AuthorizationContext struct {
	req   *Request
	user  *User
	roles permission.RoleSet
	perms permission.PermissionSet
}

// CurrentUser resolves and caches the request's user.
//
// Errors: ErrAuthentication when the request is not authenticated or the
// user no longer exists, ErrAuthorization when the account is inactive,
// ErrPersistence on store failures.
func (a *AuthorizationContext) CurrentUser(ctx context.Context) (*User, error) {
	if a.user != nil {
		return a.user, nil
	}

	userID, err := a.req.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	e := a.req.engine
	u, err := e.users.ReadByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrAuthentication)
		}
		e.metrics.Inc(MetricPersistenceFailure)
		return nil, persistence(err)
	}
	if !u.Active {
		return nil, fmt.Errorf("%w: account inactive", ErrAuthorization)
	}

	a.user = u
	a.roles = e.resolver.TransitiveRoles(u.Role)
	a.perms = e.resolver.TransitivePermissions(a.roles)
	return u, nil
}

// CurrentRoles returns the transitive role closure of the current user.
func (a *AuthorizationContext) CurrentRoles(ctx context.Context) (permission.RoleSet, error) {
	if _, err := a.CurrentUser(ctx); err != nil {
		return nil, err
	}
	return a.roles, nil
}

// AuthorizeAction requires perm, or the wildcard, among the current user's
// transitive permissions.
func (a *AuthorizationContext) AuthorizeAction(ctx context.Context, perm permission.Permission) error {
	u, err := a.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if a.isSuperAdmin(u) || a.perms.Allows(perm) {
		return nil
	}
	return a.deny(ctx, "missing permission", logrus.Fields{"permission": perm})
}

// AuthorizeActionByRole requires role within the current user's transitive
// role closure. With subordinateOnly the user's own role is excluded, so a
// role never manages itself.
func (a *AuthorizationContext) AuthorizeActionByRole(ctx context.Context, role permission.Role, subordinateOnly bool) error {
	u, err := a.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if a.isSuperAdmin(u) {
		return nil
	}
	if a.closure(u, subordinateOnly).Has(role) {
		return nil
	}
	return a.deny(ctx, "role not in closure", logrus.Fields{"target_role": role, "subordinate_only": subordinateOnly})
}

// AuthorizeActionByUser permits acting on oneself with PermissionEditSelf.
// Acting on anyone else requires PermissionManageUsers and the target's role
// within the (optionally self-excluded) closure.
func (a *AuthorizationContext) AuthorizeActionByUser(ctx context.Context, target *User, subordinateOnly bool) error {
	u, err := a.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%w: nil target user", ErrInvalidRequest)
	}

	if target.ID == u.ID {
		if a.perms.Allows(permission.PermissionEditSelf) {
			return nil
		}
		return a.deny(ctx, "missing permission", logrus.Fields{"permission": permission.PermissionEditSelf})
	}
	if a.isSuperAdmin(u) {
		return nil
	}
	if !a.perms.Allows(permission.PermissionManageUsers) {
		return a.deny(ctx, "missing permission", logrus.Fields{"permission": permission.PermissionManageUsers})
	}
	if !a.closure(u, subordinateOnly).Has(target.Role) {
		return a.deny(ctx, "target role not in closure", logrus.Fields{"target_user": target.ID, "target_role": target.Role})
	}
	return nil
}

// Authorize evaluates p with the current user as actor. target may be nil
// for policies that do not refer to another user.
func (a *AuthorizationContext) Authorize(ctx context.Context, p permission.Policy, target *User) error {
	u, err := a.CurrentUser(ctx)
	if err != nil {
		return err
	}
	in := permission.Input{Actor: u.Subject()}
	if target != nil {
		subject := target.Subject()
		in.Target = &subject
	}
	if permission.Evaluate(a.req.engine.resolver, p, in) {
		return nil
	}
	return a.deny(ctx, "policy not satisfied", logrus.Fields{"policy": p.Kind.String()})
}

func (a *AuthorizationContext) isSuperAdmin(u *User) bool {
	return u.Role == permission.RoleSuperAdmin
}

func (a *AuthorizationContext) closure(u *User, subordinateOnly bool) permission.RoleSet {
	if subordinateOnly {
		return a.roles.Without(u.Role)
	}
	return a.roles
}

func (a *AuthorizationContext) deny(ctx context.Context, reason string, fields logrus.Fields) error {
	e := a.req.engine
	e.metrics.Inc(MetricAuthorizationDenied)
	e.logger.WithFields(fields).WithFields(logrus.Fields{
		"op":      "authorize",
		"user_id": a.user.ID,
		"role":    a.user.Role,
	}).Debug(reason)
	return fmt.Errorf("%w: %s", ErrAuthorization, reason)
}

// reset drops the cached user after the request's session ends.
func (a *AuthorizationContext) reset() {
	a.user = nil
	a.roles = nil
	a.perms = nil
}
