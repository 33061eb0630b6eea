package sessionauth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication reports an absent, malformed, expired or unverifiable
	// credential, or a session that no longer exists. Never retried.
	ErrAuthentication = errors.New("not authenticated")
	// ErrAuthorization reports that the current user's role does not allow the action.
	ErrAuthorization = errors.New("not authorized")
	// ErrAlreadyAuthenticated is returned by log-in and sign-up when the request
	// already carries a valid session.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrPersistence wraps failures of the session or user store. The caller
	// decides whether to retry.
	ErrPersistence = errors.New("persistence unavailable")

	// ErrInvalidCredentials is returned for an unknown username or a wrong password.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	// ErrAccountInactive is returned when an inactive account tries to log in.
	ErrAccountInactive = fmt.Errorf("%w: account inactive", ErrAuthentication)

	// ErrTooManyAttempts is returned by log-in after too many failed attempts
	// for one username within the throttle window.
	ErrTooManyAttempts = errors.New("too many login attempts")

	// ErrUserNotFound is returned when a target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when creating a user whose username exists.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrRoleChangeNotPermitted is returned when a role or activation change
	// does not apply to the target user.
	ErrRoleChangeNotPermitted = errors.New("role change not permitted")
	// ErrInvalidRequest is returned for malformed input such as a short password.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

func persistence(err error) error {
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
