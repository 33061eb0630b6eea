package internal

import "testing"

func TestNewSessionIDShape(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		sid, err := NewSessionID()
		if err != nil {
			t.Fatalf("NewSessionID error: %v", err)
		}
		if len(sid) != 43 {
			t.Fatalf("expected 43 base64url chars, got %d (%q)", len(sid), sid)
		}
		if !ValidSessionID(sid) {
			t.Fatalf("generated id does not parse: %q", sid)
		}
		if _, dup := seen[sid]; dup {
			t.Fatalf("duplicate session id %q", sid)
		}
		seen[sid] = struct{}{}
	}
}

// FuzzParseSessionID exercises session id decoding with arbitrary strings.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("!!!not-base64!!!")
	if sid, err := NewSessionID(); err == nil {
		f.Add(sid)
	}

	f.Fuzz(func(t *testing.T, s string) {
		raw, err := parseSessionID(s)
		if err != nil {
			return
		}
		if len(raw) != SessionIDSize {
			t.Fatalf("unexpected size %d", len(raw))
		}
	})
}
