package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

// FuzzExtractSessionID feeds arbitrary strings to the verifier.
// No input may panic, and every rejection must be ErrInvalidToken.
func FuzzExtractSessionID(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	codec, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "fuzz-test",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		f.Fatal(err)
	}

	valid, err := codec.Issue("sid1", time.Now().Add(5*time.Minute))
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJzZXNzaW9uX2lkIjoieCJ9.")
	f.Add(valid + "x")

	f.Fuzz(func(t *testing.T, token string) {
		sid, err := codec.ExtractSessionID(token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("unexpected error class: %v", err)
			}
			return
		}
		if sid == "" {
			t.Fatal("accepted token with empty session id")
		}
	})
}
