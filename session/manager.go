package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionauth/internal"
)

// minRenewStep is the smallest amount a renewal moves an expiration forward.
const minRenewStep = time.Second

// Config configures a [Manager].
type Config struct {
	// TTL is the session lifetime granted at creation and on each renewal.
	TTL time.Duration
	// RefreshThreshold in (0,1): a session is near expiry when its remaining
	// lifetime is below TTL*RefreshThreshold.
	RefreshThreshold float64
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
	// NewID overrides id generation. Defaults to 32 random bytes, base64url.
	NewID func() (string, error)
	// ValidID reports whether an id could have come from NewID. With the
	// default generator it checks the base64url/32-byte shape; with a custom
	// NewID it defaults to accepting any non-empty id.
	ValidID func(id string) bool
}

// Manager applies session lifecycle rules over a [Store]. It holds no
// per-request state and is safe for concurrent use.
type Manager struct {
	ttl       time.Duration
	threshold float64
	now       func() time.Time
	newID     func() (string, error)
	validID   func(string) bool
}

// NewManager validates cfg and builds a manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL < minRenewStep {
		return nil, fmt.Errorf("session ttl must be at least %s", minRenewStep)
	}
	if cfg.RefreshThreshold <= 0 || cfg.RefreshThreshold >= 1 {
		return nil, errors.New("session refresh threshold must be in (0,1)")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = internal.NewSessionID
		if cfg.ValidID == nil {
			cfg.ValidID = internal.ValidSessionID
		}
	}
	if cfg.ValidID == nil {
		cfg.ValidID = func(id string) bool { return id != "" }
	}
	return &Manager{
		ttl:       cfg.TTL,
		threshold: cfg.RefreshThreshold,
		now:       cfg.Now,
		newID:     cfg.NewID,
		validID:   cfg.ValidID,
	}, nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Create builds an unsaved session for userID expiring TTL from now.
// Expirations are kept at whole seconds so they match the token exp claim.
func (m *Manager) Create(userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("empty user id")
	}
	id, err := m.newID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	return &Session{
		ID:         id,
		UserID:     userID,
		Expiration: m.now().Add(m.ttl).Truncate(time.Second).UTC(),
	}, nil
}

// Save inserts a new session.
func (m *Manager) Save(ctx context.Context, st Store, s *Session) error {
	return st.Insert(ctx, s)
}

// Read loads a session. With forUpdate the record is locked until the
// surrounding Tx ends.
func (m *Manager) Read(ctx context.Context, st Store, id string, forUpdate bool) (*Session, error) {
	return st.Get(ctx, id, forUpdate)
}

// ValidID reports whether id is well formed. Ids failing it cannot name a
// stored session, so callers reject them without a store round trip.
func (m *Manager) ValidID(id string) bool {
	return m.validID(id)
}

// IsExpired reports whether s.Expiration <= now.
func (m *Manager) IsExpired(s *Session) bool {
	return !s.Expiration.After(m.now())
}

// IsNearExpiry reports whether the remaining lifetime is below TTL*threshold.
func (m *Manager) IsNearExpiry(s *Session) bool {
	remaining := s.Expiration.Sub(m.now())
	return remaining < time.Duration(float64(m.ttl)*m.threshold)
}

// Renew extends s to now+TTL, or to one second past its current expiration
// when that is later, and persists the change. s is updated in place only
// after the store accepts the write.
func (m *Manager) Renew(ctx context.Context, st Store, s *Session) error {
	next := m.now().Add(m.ttl).Truncate(time.Second)
	if floor := s.Expiration.Truncate(time.Second).Add(minRenewStep); next.Before(floor) {
		next = floor
	}
	next = next.UTC()

	if err := st.UpdateExpiration(ctx, s.ID, next); err != nil {
		return err
	}
	s.Expiration = next
	return nil
}

// Delete removes a session and reports whether it existed. Deleting an
// unknown id is not an error.
func (m *Manager) Delete(ctx context.Context, st Store, id string) (bool, error) {
	return st.Delete(ctx, id)
}

// DeleteAllForUser removes every session of userID. Zero sessions is not an error.
func (m *Manager) DeleteAllForUser(ctx context.Context, st Store, userID string) (int, error) {
	return st.DeleteAllForUser(ctx, userID)
}
