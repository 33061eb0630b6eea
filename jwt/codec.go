package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// minHMACSecret is the shortest shared secret accepted for hs256.
const minHMACSecret = 32

// ErrInvalidToken is the only error returned by [Codec.ExtractSessionID].
var ErrInvalidToken = errors.New("invalid token")

// Config configures a [Codec].
//
// For hs256 Secret is required. For ed25519 PrivateKey is required to issue and
// PublicKey (or PrivateKey, from which it is derived) to verify. Keys may be raw
// bytes or PEM.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// Now overrides the verification clock. Defaults to time.Now.
	Now func() time.Time
}

// Codec issues and verifies session tokens. It is immutable and safe for
// concurrent use.
type Codec struct {
	method  jwt.SigningMethod
	signKey interface{}
	verKey  interface{}
	parser  *jwt.Parser
	cfg     Config
}

// Claims is the decoded token payload.
type Claims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// NewCodec validates cfg and builds a codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	c := &Codec{cfg: cfg}

	switch SigningMethod(strings.ToLower(string(cfg.SigningMethod))) {
	case MethodHS256:
		if len(cfg.Secret) < minHMACSecret {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACSecret)
		}
		c.method = jwt.SigningMethodHS256
		c.signKey = cfg.Secret
		c.verKey = cfg.Secret
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			c.signKey = priv
			c.verKey = priv.Public().(ed25519.PublicKey)
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			c.verKey = pub
		}
		if c.verKey == nil {
			return nil, errors.New("ed25519 requires a public or private key")
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	c.parser = jwt.NewParser(options...)

	return c, nil
}

// Issue signs a token referencing sessionID that expires at expiration.
func (c *Codec) Issue(sessionID string, expiration time.Time) (string, error) {
	if sessionID == "" {
		return "", errors.New("empty session id")
	}
	if c.signKey == nil {
		return "", errors.New("codec has no signing key")
	}

	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			Issuer:    c.cfg.Issuer,
		},
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	return jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
}

// ExtractSessionID verifies token and returns the session id it references.
// Every failure wraps [ErrInvalidToken].
func (c *Codec) ExtractSessionID(token string) (string, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

// Parse verifies token and returns its claims. Every failure wraps [ErrInvalidToken].
func (c *Codec) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	parsed, err := c.parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.verKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenInvalidClaims)
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session_id", ErrInvalidToken)
	}

	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	if len(key) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
