package session

import "time"

// Session binds an opaque identifier to a user and an expiration instant.
type Session struct {
	ID         string
	UserID     string
	Expiration time.Time
}

// Clone returns a copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
