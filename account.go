package sessionauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessionauth/internal/flows"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/permission"
)

// Login checks credentials and opens a new session. The issued token is also
// recorded on req for the transport.
//
// Errors: ErrAlreadyAuthenticated when req already carries a valid session,
// ErrInvalidCredentials for an unknown user or a wrong password,
// ErrAccountInactive for a deactivated account, ErrTooManyAttempts once the
// login throttle trips, ErrPersistence on store failures.
func (e *Engine) Login(ctx context.Context, req *Request, username, pass string) (LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return LoginResult{}, ErrEngineNotReady
	}
	if err := e.rejectAuthenticated(ctx, req); err != nil {
		return LoginResult{}, err
	}

	log := e.logger.WithFields(logrus.Fields{"op": "login", "username": username})
	if err := e.acquireAttempt(ctx, username); err != nil {
		e.metrics.Inc(MetricLoginFailure)
		log.WithError(err).Warn("login throttled")
		e.emitAudit(ctx, auditEvent{eventType: auditEventLoginFailure, err: err, metadata: map[string]string{"username": username}})
		return LoginResult{}, err
	}
	res := e.flows.Login(ctx, username, pass, req.unit)

	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureInvalidCredentials:
		err = ErrInvalidCredentials
		if res.Err != nil {
			log.WithError(res.Err).Warn("stored password hash rejected")
		}
	case flows.LoginFailureInactive:
		err = ErrAccountInactive
	case flows.LoginFailureStore:
		_ = req.unit.Rollback(ctx)
		e.metrics.Inc(MetricPersistenceFailure)
		log.WithError(res.Err).Error("login persistence failed")
		err = persistence(res.Err)
	default:
		_ = req.unit.Rollback(ctx)
		log.WithError(res.Err).Error("login failed")
		err = fmt.Errorf("login: %w", res.Err)
	}
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		log.WithError(err).Debug("login rejected")
		e.emitAudit(ctx, auditEvent{eventType: auditEventLoginFailure, userID: res.UserID, err: err})
		return LoginResult{}, err
	}

	e.resetThrottle(ctx, log, username)
	req.setIssued(res.Token)
	e.metrics.Inc(MetricLoginSuccess)
	log.WithFields(logrus.Fields{"user_id": res.UserID, "session_id": res.Session.ID}).Info("logged in")
	e.emitAudit(ctx, auditEvent{
		eventType: auditEventLoginSuccess,
		userID:    res.UserID,
		sessionID: res.Session.ID,
		success:   true,
	})
	return LoginResult{
		UserID:     res.UserID,
		SessionID:  res.Session.ID,
		Token:      res.Token,
		Expiration: res.Session.Expiration,
	}, nil
}

// Logout deletes the request's session and tells the transport to clear the
// token. It reports whether a session was removed; a session deleted
// concurrently is not an error.
func (e *Engine) Logout(ctx context.Context, req *Request) (bool, error) {
	if e == nil || !e.flows.Initialized() {
		return false, ErrEngineNotReady
	}
	res, err := req.identity.Current(ctx)
	if err != nil {
		return false, err
	}

	removed, err := e.flows.Logout(ctx, res.SessionID, req.unit)
	if err != nil {
		_ = req.unit.Rollback(ctx)
		e.metrics.Inc(MetricPersistenceFailure)
		e.logger.WithError(err).WithField("session_id", res.SessionID).Error("logout failed")
		return false, persistence(err)
	}

	req.setCleared()
	req.identity.forget()
	req.authz.reset()
	e.metrics.Inc(MetricLogout)
	e.logger.WithFields(logrus.Fields{"op": "logout", "user_id": res.UserID, "removed": removed}).Info("logged out")
	e.emitAudit(ctx, auditEvent{
		eventType: auditEventLogout,
		userID:    res.UserID,
		sessionID: res.SessionID,
		success:   true,
	})
	return removed, nil
}

// SignUp creates an active account with the user role. It does not log the
// new user in.
func (e *Engine) SignUp(ctx context.Context, req *Request, username, pass string) (*User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := e.rejectAuthenticated(ctx, req); err != nil {
		return nil, err
	}

	u, err := e.createUser(ctx, username, pass, permission.RoleUser)
	if err != nil {
		e.emitAudit(ctx, auditEvent{eventType: auditEventSignUp, err: err, metadata: map[string]string{"username": username}})
		return nil, err
	}
	e.metrics.Inc(MetricSignUp)
	e.logger.WithFields(logrus.Fields{"op": "signup", "user_id": u.ID}).Info("user signed up")
	e.emitAudit(ctx, auditEvent{eventType: auditEventSignUp, userID: u.ID, success: true})
	return u, nil
}

// ChangePassword sets a new password for username. Users may change their own
// password with edit_self; changing another user's needs manage_users and a
// target role strictly below the actor's.
func (e *Engine) ChangePassword(ctx context.Context, req *Request, username, newPassword string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	actor, err := req.authz.CurrentUser(ctx)
	if err != nil {
		return err
	}
	target, err := e.readUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := req.authz.Authorize(ctx, changePasswordPolicy, target); err != nil {
		return err
	}

	hash, err := e.hashPassword(newPassword)
	if err != nil {
		return err
	}
	updated := *target
	updated.PasswordHash = hash
	if err := e.updateUser(ctx, &updated); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChange)
	e.logger.WithFields(logrus.Fields{"op": "change_password", "user_id": target.ID, "actor_id": actor.ID}).Info("password changed")
	e.emitAudit(ctx, auditEvent{eventType: auditEventPasswordChange, userID: target.ID, actorID: actor.ID, success: true})
	return nil
}

// acquireAttempt takes a throttle slot before any credential is checked.
func (e *Engine) acquireAttempt(ctx context.Context, username string) error {
	if e.throttle == nil {
		return nil
	}
	switch err := e.throttle.Acquire(ctx, username); {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrTooManyAttempts
	default:
		e.metrics.Inc(MetricPersistenceFailure)
		return persistence(err)
	}
}

// resetThrottle only logs on error: the login already succeeded.
func (e *Engine) resetThrottle(ctx context.Context, log logrus.FieldLogger, username string) {
	if e.throttle == nil {
		return
	}
	if err := e.throttle.Reset(ctx, username); err != nil {
		log.WithError(err).Warn("resetting login throttle")
	}
}

var changePasswordPolicy = permission.AnyOf(
	permission.AllOf(permission.IsSelf(), permission.HasPermission(permission.PermissionEditSelf)),
	permission.AllOf(permission.HasPermission(permission.PermissionManageUsers), permission.IsSuperior()),
)

// rejectAuthenticated fails when req carries a token that still resolves.
// Store failures are reported rather than treated as anonymous.
func (e *Engine) rejectAuthenticated(ctx context.Context, req *Request) error {
	if req.token == "" {
		return nil
	}
	_, err := req.identity.Current(ctx)
	switch {
	case err == nil:
		return ErrAlreadyAuthenticated
	case errors.Is(err, ErrAuthentication):
		return nil
	default:
		return err
	}
}

func (e *Engine) createUser(ctx context.Context, username, pass string, role permission.Role) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username required", ErrInvalidRequest)
	}
	hash, err := e.hashPassword(pass)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, err
		}
		e.metrics.Inc(MetricPersistenceFailure)
		return nil, persistence(err)
	}
	return u, nil
}

func (e *Engine) hashPassword(pass string) (string, error) {
	hash, err := e.hasher.Hash(pass)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (e *Engine) readUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := e.users.ReadByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		e.metrics.Inc(MetricPersistenceFailure)
		return nil, persistence(err)
	}
	return u, nil
}

func (e *Engine) updateUser(ctx context.Context, u *User) error {
	if err := e.users.Update(ctx, u); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		e.metrics.Inc(MetricPersistenceFailure)
		return persistence(err)
	}
	return nil
}
