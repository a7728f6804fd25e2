package session

import (
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack"
)

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	data, err := msgpack.Marshal(&wireSession{Version: 99, ID: "sid"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	in := &Session{ID: "sid-1", CSRFToken: "abc", CreatedAt: 1700000000}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.ID != in.ID || out.CSRFToken != in.CSRFToken || out.CreatedAt != in.CreatedAt {
		t.Fatalf("mismatch: %+v vs %+v", out, in)
	}
	if _, err := Encode(&Session{}); err == nil {
		t.Fatal("Encode must reject a session without id")
	}
}

func FuzzSessionDecode(f *testing.F) {
	if encoded, err := Encode(&Session{ID: "sid-fuzz", CSRFToken: "tok", CreatedAt: 1700000000}); err == nil {
		f.Add(encoded)
		f.Add(encoded[:len(encoded)/2])
	}
	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{0x80})
	f.Add([]byte{255, 255, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		sess, err := Decode(data)
		if err != nil {
			if !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("decode errors must wrap ErrCorruptRecord, got %v", err)
			}
			return
		}
		if sess.ID == "" {
			t.Fatal("decoded session without id")
		}
	})
}
