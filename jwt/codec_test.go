package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHSCodec(t *testing.T, cfg Config) *Codec {
	t.Helper()
	cfg.SigningMethod = MethodHS256
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	return c
}

func flipSignatureByte(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %s", token)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[len(sig)/2] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}

func TestIssueExtractRoundTrip(t *testing.T) {
	c := newHSCodec(t, Config{})

	exp := time.Now().Add(time.Hour)
	for _, sid := range []string{"a", "session-123", strings.Repeat("x", 43)} {
		token, err := c.Issue(sid, exp)
		if err != nil {
			t.Fatalf("Issue error: %v", err)
		}
		got, err := c.ExtractSessionID(token)
		if err != nil {
			t.Fatalf("ExtractSessionID error: %v", err)
		}
		if got != sid {
			t.Fatalf("session id = %q, want %q", got, sid)
		}
	}
}

func TestExpClaimMatchesExpiration(t *testing.T) {
	c := newHSCodec(t, Config{})

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := c.Issue("sid", exp)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	claims, err := c.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("exp = %v, want %v", claims.ExpiresAt.Time, exp)
	}
}

func TestRejectsFlippedSignature(t *testing.T) {
	c := newHSCodec(t, Config{})

	token, err := c.Issue("sid", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := c.ExtractSessionID(flipSignatureByte(t, token)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRejectsExpired(t *testing.T) {
	c := newHSCodec(t, Config{})

	token, err := c.Issue("sid", time.Now().Add(-time.Second))
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := c.ExtractSessionID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLeewayUsesInjectedClock(t *testing.T) {
	now := time.Now()
	c := newHSCodec(t, Config{
		Leeway: 30 * time.Second,
		Now:    func() time.Time { return now },
	})

	token, err := c.Issue("sid", now.Add(-10*time.Second))
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := c.ExtractSessionID(token); err != nil {
		t.Fatalf("expected token within leeway to verify: %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := c.ExtractSessionID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after clock advance, got %v", err)
	}
}

func TestRejectsWrongAlgorithm(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	c, err := NewCodec(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	claims := Claims{SessionID: "sid", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(pub))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := c.ExtractSessionID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRejectsNoneAlgorithm(t *testing.T) {
	c := newHSCodec(t, Config{})

	claims := Claims{SessionID: "sid", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := c.ExtractSessionID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRejectsMissingSessionID(t *testing.T) {
	c := newHSCodec(t, Config{})

	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := c.ExtractSessionID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRejectsMissingExp(t *testing.T) {
	c := newHSCodec(t, Config{})

	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{SessionID: "sid"}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := c.ExtractSessionID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRejectsMalformed(t *testing.T) {
	c := newHSCodec(t, Config{})

	for _, token := range []string{"", "garbage", "a.b.c", "..."} {
		if _, err := c.ExtractSessionID(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestIssuerAndAudienceEnforced(t *testing.T) {
	issuer := newHSCodec(t, Config{Issuer: "sessionauth", Audience: "api"})
	other := newHSCodec(t, Config{Issuer: "someone-else", Audience: "api"})

	token, err := other.Issue("sid", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := issuer.ExtractSessionID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to be rejected, got %v", err)
	}

	token, err = issuer.Issue("sid", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := issuer.ExtractSessionID(token); err != nil {
		t.Fatalf("expected matching issuer/audience to verify: %v", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	c, err := NewCodec(Config{SigningMethod: MethodEd25519, PrivateKey: priv})
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	token, err := c.Issue("sid", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if sid, err := c.ExtractSessionID(token); err != nil || sid != "sid" {
		t.Fatalf("ExtractSessionID = %q, %v", sid, err)
	}
}

func TestNewCodecValidation(t *testing.T) {
	cases := []Config{
		{SigningMethod: MethodHS256, Secret: []byte("short")},
		{SigningMethod: MethodEd25519},
		{SigningMethod: MethodEd25519, PublicKey: []byte("not a key")},
		{SigningMethod: "rs256", Secret: testSecret},
		{SigningMethod: MethodHS256, Secret: testSecret, Leeway: -time.Second},
	}
	for i, cfg := range cases {
		if _, err := NewCodec(cfg); err == nil {
			t.Fatalf("case %d: expected configuration error", i)
		}
	}
}

func TestVerifyOnlyCodecCannotIssue(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	c, err := NewCodec(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	if _, err := c.Issue("sid", time.Now().Add(time.Minute)); err == nil {
		t.Fatal("expected error issuing without private key")
	}
}
