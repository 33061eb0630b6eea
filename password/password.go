package password

import (
	"errors"
	"fmt"
	"strings"
)

// MinPasswordBytes is the shortest password either hasher accepts.
const MinPasswordBytes = 10

var (
	// ErrTooShort is returned by Hash for passwords under MinPasswordBytes.
	ErrTooShort = fmt.Errorf("password must be at least %d bytes", MinPasswordBytes)
	// ErrTooLong is returned when a password exceeds the hasher's upper bound.
	ErrTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Algorithm names a supported hashing scheme.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Hasher is satisfied by both [Argon2] and [Bcrypt].
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Config selects an algorithm and its parameters.
type Config struct {
	Algorithm  Algorithm
	Argon2     Argon2Config
	BcryptCost int
}

// New builds the hasher named by cfg.Algorithm. Stored hashes of the other
// algorithm still verify, so switching algorithms does not lock users out.
func New(cfg Config) (Hasher, error) {
	m := &multi{
		argon:  &Argon2{config: DefaultArgon2Config()},
		bcrypt: &Bcrypt{cost: DefaultBcryptCost},
	}
	switch cfg.Algorithm {
	case AlgorithmArgon2id, "":
		a, err := NewArgon2(cfg.Argon2)
		if err != nil {
			return nil, err
		}
		m.primary, m.argon = a, a
	case AlgorithmBcrypt:
		b, err := NewBcrypt(cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		m.primary, m.bcrypt = b, b
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	return m, nil
}

type multi struct {
	primary Hasher
	argon   *Argon2
	bcrypt  *Bcrypt
}

func (m *multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *multi) Verify(password, encodedHash string) (bool, error) {
	return m.forHash(encodedHash).Verify(password, encodedHash)
}

// NeedsUpgrade also reports true for hashes made by the non-primary algorithm.
func (m *multi) NeedsUpgrade(encodedHash string) (bool, error) {
	h := m.forHash(encodedHash)
	if h != m.primary {
		return true, nil
	}
	return h.NeedsUpgrade(encodedHash)
}

func (m *multi) forHash(encodedHash string) Hasher {
	switch {
	case strings.HasPrefix(encodedHash, "$"+argon2ID+"$"):
		return m.argon
	case isBcryptHash(encodedHash):
		return m.bcrypt
	default:
		return m.primary
	}
}

func checkLength(password string, max int) error {
	if len(password) < MinPasswordBytes {
		return ErrTooShort
	}
	if max > 0 && len(password) > max {
		return ErrTooLong
	}
	return nil
}
