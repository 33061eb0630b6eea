package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionIDSize is the number of random bytes behind a session id (256 bits).
const SessionIDSize = 32

// NewSessionID returns 32 bytes from crypto/rand, base64url encoded without padding.
func NewSessionID() (string, error) {
	var raw [SessionIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidSessionID reports whether s has the shape produced by NewSessionID.
func ValidSessionID(s string) bool {
	_, err := parseSessionID(s)
	return err == nil
}

func parseSessionID(s string) ([SessionIDSize]byte, error) {
	var sid [SessionIDSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}
