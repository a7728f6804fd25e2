package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// MinPasswordBytes is the shortest password Hash accepts.
	MinPasswordBytes = 8
	// DefaultMaxPasswordBytes caps input when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 bytes")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length")
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Config) validate() error {
	var errs []error
	if c.Memory < minMemoryKB {
		errs = append(errs, fmt.Errorf("memory must be >= %d KiB", minMemoryKB))
	}
	if c.Time < minTimeCost {
		errs = append(errs, errors.New("time must be >= 1"))
	}
	if c.Parallelism < minParallelism {
		errs = append(errs, errors.New("parallelism must be >= 1"))
	}
	if c.SaltLength < minSaltLength {
		errs = append(errs, fmt.Errorf("salt length must be >= %d", minSaltLength))
	}
	if c.KeyLength < minKeyLength {
		errs = append(errs, fmt.Errorf("key length must be >= %d", minKeyLength))
	}
	if c.MaxPasswordBytes < 0 {
		errs = append(errs, errors.New("max password bytes must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("password config: %w", errors.Join(errs...))
	}
	return nil
}

// Hasher is what the engine needs from a password hashing scheme.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Argon2 writes Argon2id PHC strings and verifies both those and legacy
// bcrypt hashes.
type Argon2 struct {
	cfg Config
}

var _ Hasher = (*Argon2)(nil)

func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash returns a fresh PHC string for password. Input bytes are hashed as
// given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case len(password) < MinPasswordBytes:
		return "", ErrPasswordTooShort
	case len(password) > a.cfg.MaxPasswordBytes:
		return "", ErrPasswordTooLong
	}

	p := phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        make([]byte, a.cfg.SaltLength),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", err
	}
	p.key = argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, a.cfg.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches encodedHash. A non-nil error means
// the stored hash is unusable, not that the password is wrong.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if len(password) > a.cfg.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	if isBcrypt(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(got, p.key) == 1, nil
}

// NeedsUpgrade is true for bcrypt hashes and for Argon2id hashes made with
// weaker parameters or a different key length than the current config.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.parallelism < a.cfg.Parallelism ||
		uint32(len(p.key)) != a.cfg.KeyLength, nil
}
