package session

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack"
)

const schemaVersionCurrent = 1

// ErrCorruptRecord is returned by Decode for unreadable session records.
var ErrCorruptRecord = errors.New("session record corrupt")

type wireSession struct {
	Version   uint8  `msgpack:"v"`
	ID        string `msgpack:"id"`
	CSRFToken string `msgpack:"csrf_token"`
	CreatedAt int64  `msgpack:"created_at"`
}

// Encode serializes s at the current schema version.
func Encode(s *Session) ([]byte, error) {
	if s == nil || s.ID == "" {
		return nil, errors.New("session id is required")
	}
	return msgpack.Marshal(&wireSession{
		Version:   schemaVersionCurrent,
		ID:        s.ID,
		CSRFToken: s.CSRFToken,
		CreatedAt: s.CreatedAt,
	})
}

// Decode parses a record written by Encode.
func Decode(data []byte) (*Session, error) {
	if len(data) == 0 {
		return nil, ErrCorruptRecord
	}
	var w wireSession
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if w.Version != schemaVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrCorruptRecord, w.Version)
	}
	if w.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrCorruptRecord)
	}
	return &Session{
		ID:        w.ID,
		CSRFToken: w.CSRFToken,
		CreatedAt: w.CreatedAt,
	}, nil
}
