package session

import (
	"testing"
	"time"
)

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Goal: no panics; anything that decodes must re-encode to the same bytes.
func FuzzSessionDecode(f *testing.F) {
	encoded, err := Encode(&Session{
		UserID:     "user1",
		Expiration: time.UnixMilli(1700003600000),
	})
	if err == nil {
		f.Add(encoded)
		f.Add(encoded[:len(encoded)-3])
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{1, 0})
	f.Add([]byte{255, 255, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		again, err := Encode(s)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		if string(again) != string(data) {
			t.Fatalf("round trip mismatch: %x != %x", again, data)
		}
	})
}
