package flows

import (
	"context"

	"github.com/MrEthical07/sessionauth/session"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Resolve ResolveDeps
	Login   LoginDeps
	Logout  LogoutDeps
	Revoke  RevokeDeps
}

// Unit is a request's unit of work. Store begins it lazily; Commit and
// Rollback end it so the next Store call starts a fresh one.
type Unit interface {
	Store(ctx context.Context) (session.Store, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Sessions is the lifecycle surface the flows need. *session.Manager satisfies it.
type Sessions interface {
	Create(userID string) (*session.Session, error)
	Save(ctx context.Context, st session.Store, s *session.Session) error
	Read(ctx context.Context, st session.Store, id string, forUpdate bool) (*session.Session, error)
	ValidID(id string) bool
	IsExpired(s *session.Session) bool
	IsNearExpiry(s *session.Session) bool
	Renew(ctx context.Context, st session.Store, s *session.Session) error
	Delete(ctx context.Context, st session.Store, id string) (bool, error)
	DeleteAllForUser(ctx context.Context, st session.Store, userID string) (int, error)
}
