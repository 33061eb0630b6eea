package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionauth/session"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidCredentials
	LoginFailureInactive
	LoginFailureStore
	LoginFailureInternal
)

// LoginUser is the flow-local view of an account.
type LoginUser struct {
	ID           string
	PasswordHash string
	Active       bool
}

// LoginDeps captures credential check and session creation dependencies.
type LoginDeps struct {
	LookupUser     func(ctx context.Context, username string) (*LoginUser, error)
	UserNotFound   error
	VerifyPassword func(password, encoded string) (bool, error)
	Issue          func(sessionID string, expiration time.Time) (string, error)
	Sessions       Sessions
}

type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	UserID  string
	Session *session.Session
	Token   string
}

// RunLogin checks credentials, creates a session, issues its token and only
// then saves and commits the session. Unknown usernames and wrong passwords share one failure kind.
func RunLogin(ctx context.Context, username, password string, unit Unit, deps LoginDeps) LoginResult {
	u, err := deps.LookupUser(ctx, username)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return LoginResult{Failure: LoginFailureInvalidCredentials}
		}
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	ok, err := deps.VerifyPassword(password, u.PasswordHash)
	if err != nil || !ok {
		return LoginResult{Failure: LoginFailureInvalidCredentials, UserID: u.ID, Err: err}
	}
	if !u.Active {
		return LoginResult{Failure: LoginFailureInactive, UserID: u.ID}
	}

	s, err := deps.Sessions.Create(u.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureInternal, UserID: u.ID, Err: err}
	}
	// Issue before persisting: a session nobody holds a token for must not exist.
	token, err := deps.Issue(s.ID, s.Expiration)
	if err != nil {
		return LoginResult{Failure: LoginFailureInternal, UserID: u.ID, Err: err}
	}
	st, err := unit.Store(ctx)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, UserID: u.ID, Err: err}
	}
	if err := deps.Sessions.Save(ctx, st, s); err != nil {
		return LoginResult{Failure: LoginFailureStore, UserID: u.ID, Err: err}
	}
	if err := unit.Commit(ctx); err != nil {
		return LoginResult{Failure: LoginFailureStore, UserID: u.ID, Err: err}
	}

	return LoginResult{UserID: u.ID, Session: s, Token: token}
}
