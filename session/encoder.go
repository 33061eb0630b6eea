package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// CurrentSchemaVersion is the leading byte of every encoded session.
const CurrentSchemaVersion = 1

// Encode serializes a session for the Redis adapter:
//
//	[version:1][len(userID):1][userID][expiration unix ms:8 big endian]
//
// The id is the key and is not repeated in the value.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.UserID == "" {
		return nil, errors.New("empty userID")
	}
	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(s.UserID) + 8)

	buf.WriteByte(CurrentSchemaVersion)
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if err := binary.Write(&buf, binary.BigEndian, s.Expiration.UnixMilli()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a value produced by [Encode]. The returned session has no ID.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if userLen == 0 {
		return nil, errors.New("empty userID")
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}

	var expMillis int64
	if err := binary.Read(reader, binary.BigEndian, &expMillis); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session record")
	}

	return &Session{
		UserID:     string(userID),
		Expiration: time.UnixMilli(expMillis).UTC(),
	}, nil
}
