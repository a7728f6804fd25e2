package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// ErrMalformedHash is returned when a stored hash cannot be decoded.
var ErrMalformedHash = errors.New("malformed password hash")

var phcEncoding = base64.RawStdEncoding

// phc is a decoded $argon2id$ string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		p.memory, p.time, p.parallelism,
		phcEncoding.EncodeToString(p.salt),
		phcEncoding.EncodeToString(p.key),
	)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, fmt.Sprintf(format, args...))
}

// decodePHC parses s and rejects parameters below the package floors, so a
// tampered hash cannot force a trivially cheap verification.
func decodePHC(s string) (phc, error) {
	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" {
		return phc{}, malformed("want 5 fields")
	}
	if fields[1] != algorithmID {
		return phc{}, malformed("algorithm %q", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return phc{}, malformed("version %q", fields[2])
	}

	var p phc
	var par uint32
	n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &par)
	if err != nil || n != 3 || fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.time, par) != fields[3] {
		return phc{}, malformed("parameters %q", fields[3])
	}
	if p.memory < minMemoryKB || p.time < minTimeCost || par < uint32(minParallelism) || par > 255 {
		return phc{}, malformed("parameters below floor")
	}
	p.parallelism = uint8(par)

	if p.salt, err = decodeB64(fields[4]); err != nil || len(p.salt) < int(minSaltLength) {
		return phc{}, malformed("salt")
	}
	if p.key, err = decodeB64(fields[5]); err != nil || len(p.key) == 0 {
		return phc{}, malformed("key")
	}
	return p, nil
}

// decodeB64 accepts padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	return phcEncoding.DecodeString(strings.TrimRight(s, "="))
}
