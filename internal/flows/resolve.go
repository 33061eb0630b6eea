package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionauth/session"
)

var errMalformedSessionID = errors.New("malformed session id")

// ResolveFailureKind classifies resolution failures for root-level mapping.
type ResolveFailureKind int

const (
	ResolveFailureNone ResolveFailureKind = iota
	ResolveFailureMissingToken
	ResolveFailureInvalidToken
	ResolveFailureSessionNotFound
	ResolveFailureExpired
	// ResolveFailureStore means the session could not be read at all.
	ResolveFailureStore
)

// ResolveDeps captures token-to-identity dependencies.
type ResolveDeps struct {
	ExtractSessionID func(token string) (string, error)
	Issue            func(sessionID string, expiration time.Time) (string, error)
	Sessions         Sessions
}

// ResolveResult carries either the live session or a classified failure.
// RenewErr reports a renewal that failed after the session was validated;
// the resolution itself still succeeded.
type ResolveResult struct {
	Failure      ResolveFailureKind
	Err          error
	Session      *session.Session
	RenewedToken string
	RenewErr     error
}

// RunResolve validates token and loads its session under lock. A session near
// expiry is renewed and committed, then a token for the new expiration is
// issued. Every failure path leaves the unit of work for the caller to roll back.
func RunResolve(ctx context.Context, token string, unit Unit, deps ResolveDeps) ResolveResult {
	if token == "" {
		return ResolveResult{Failure: ResolveFailureMissingToken}
	}

	sessionID, err := deps.ExtractSessionID(token)
	if err != nil {
		return ResolveResult{Failure: ResolveFailureInvalidToken, Err: err}
	}
	if !deps.Sessions.ValidID(sessionID) {
		return ResolveResult{Failure: ResolveFailureInvalidToken, Err: errMalformedSessionID}
	}

	st, err := unit.Store(ctx)
	if err != nil {
		return ResolveResult{Failure: ResolveFailureStore, Err: err}
	}
	s, err := deps.Sessions.Read(ctx, st, sessionID, true)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ResolveResult{Failure: ResolveFailureSessionNotFound, Err: err}
		}
		return ResolveResult{Failure: ResolveFailureStore, Err: err}
	}

	if deps.Sessions.IsExpired(s) {
		return ResolveResult{Failure: ResolveFailureExpired, Session: s}
	}
	if !deps.Sessions.IsNearExpiry(s) {
		return ResolveResult{Session: s}
	}

	previous := s.Expiration
	if err := deps.Sessions.Renew(ctx, st, s); err != nil {
		return ResolveResult{Session: s, RenewErr: err}
	}
	if err := unit.Commit(ctx); err != nil {
		s.Expiration = previous
		return ResolveResult{Session: s, RenewErr: err}
	}

	renewed, err := deps.Issue(s.ID, s.Expiration)
	if err != nil {
		return ResolveResult{Session: s, RenewErr: err}
	}
	return ResolveResult{Session: s, RenewedToken: renewed}
}
