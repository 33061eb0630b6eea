package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a session id has no record.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicate is returned when inserting a session id that already exists.
	ErrDuplicate = errors.New("duplicate session id")
	// ErrUnavailable wraps every storage failure.
	ErrUnavailable = errors.New("session store unavailable")
	// ErrLockTimeout is returned when a row lock cannot be acquired in time.
	ErrLockTimeout = fmt.Errorf("%w: lock wait timeout", ErrUnavailable)
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("session transaction already finished")
)

// Store is the persistence port for sessions.
type Store interface {
	// Insert persists a new session. An existing id yields ErrDuplicate.
	Insert(ctx context.Context, s *Session) error
	// Get loads a session. With forUpdate the record stays locked until the
	// surrounding Tx finishes. A missing id yields ErrNotFound.
	Get(ctx context.Context, id string, forUpdate bool) (*Session, error)
	// UpdateExpiration overwrites the expiration of an existing session.
	UpdateExpiration(ctx context.Context, id string, expiration time.Time) error
	// Delete removes a session and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteAllForUser removes every session of userID and returns how many were removed.
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// Tx is a unit of work over a [Store].
type Tx interface {
	Store
	// Flush pushes pending writes to the backend without ending the unit of work.
	Flush(ctx context.Context) error
	// Commit makes writes durable and releases locks.
	Commit(ctx context.Context) error
	// Rollback discards pending writes where the backend supports it and releases
	// locks. Calling Rollback after Commit is a no-op.
	Rollback(ctx context.Context) error
}

// Backend opens units of work.
type Backend interface {
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
