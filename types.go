package sessionauth

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/permission"
)

// User is the account record the authorization core reasons about.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Role         permission.Role `json:"role"`
	Active       bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Subject returns the policy evaluation view of u.
func (u *User) Subject() permission.Subject {
	return permission.Subject{UserID: u.ID, Role: u.Role}
}

// UserStore is the user lookup port. Implementations return [ErrUserNotFound]
// for unknown users, [ErrUsernameTaken] on duplicate usernames and wrap every
// other failure in [ErrPersistence].
type UserStore interface {
	ReadByID(ctx context.Context, id string) (*User, error)
	ReadByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, q ListUsersQuery) ([]User, error)
}

// ListUsersQuery pages through users ordered by username.
type ListUsersQuery struct {
	Limit      int
	Offset     int
	Descending bool
}

// PasswordHasher hashes and verifies passwords. The encoding is opaque to the core.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Resolution is the outcome of [IdentityResolver.Resolve]. RenewedToken is
// non-empty only when the session was renewed during this resolution; the
// transport is expected to deliver it to the client.
type Resolution struct {
	UserID       string
	SessionID    string
	Expiration   time.Time
	RenewedToken string
}

// Renewed reports whether Resolve issued a new token.
func (r Resolution) Renewed() bool {
	return r.RenewedToken != ""
}

// LoginResult carries the freshly issued token.
type LoginResult struct {
	UserID     string
	SessionID  string
	Token      string
	Expiration time.Time
}

// AuditEvent is the canonical audit event model.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine dispatcher.
type AuditSink = internalaudit.Sink
