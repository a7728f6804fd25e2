package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"sync"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// KeySource supplies key material to a [Codec]. Implementations must be safe
// for concurrent use and wrap every failure in [ErrKeySourceUnavailable].
type KeySource interface {
	SigningKey() (any, error)
	VerificationKey() (any, error)
}

// StaticKeySource holds key material in memory. Keys may be raw ed25519 bytes
// or PEM blocks.
type StaticKeySource struct {
	method     SigningMethod
	privateKey []byte
	publicKey  []byte
}

// NewStaticKeySource returns a key source over in-memory key bytes.
func NewStaticKeySource(method SigningMethod, privateKey, publicKey []byte) *StaticKeySource {
	return &StaticKeySource{
		method:     method,
		privateKey: append([]byte(nil), privateKey...),
		publicKey:  append([]byte(nil), publicKey...),
	}
}

// SigningKey parses the private key.
func (s *StaticKeySource) SigningKey() (any, error) {
	if len(s.privateKey) == 0 {
		return nil, fmt.Errorf("%w: no private key configured", ErrKeySourceUnavailable)
	}
	key, err := parsePrivateKey(s.method, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	return key, nil
}

// VerificationKey parses the public key.
func (s *StaticKeySource) VerificationKey() (any, error) {
	if len(s.publicKey) == 0 {
		return nil, fmt.Errorf("%w: no public key configured", ErrKeySourceUnavailable)
	}
	key, err := parsePublicKey(s.method, s.publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	return key, nil
}

// FileKeySource reads PEM key files on first use and caches the parsed keys.
// A failed read is not cached, so a key file that appears later is picked up
// by the next call.
type FileKeySource struct {
	method      SigningMethod
	privatePath string
	publicPath  string

	mu      sync.Mutex
	signKey any
	verKey  any
}

// NewFileKeySource returns a key source reading from privatePath and publicPath.
// privatePath may be empty for verify-only deployments.
func NewFileKeySource(method SigningMethod, privatePath, publicPath string) *FileKeySource {
	return &FileKeySource{
		method:      method,
		privatePath: privatePath,
		publicPath:  publicPath,
	}
}

// SigningKey loads and parses the private key file.
func (s *FileKeySource) SigningKey() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.signKey != nil {
		return s.signKey, nil
	}
	if s.privatePath == "" {
		return nil, fmt.Errorf("%w: no private key path configured", ErrKeySourceUnavailable)
	}
	raw, err := os.ReadFile(s.privatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	key, err := parsePrivateKey(s.method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	s.signKey = key
	return key, nil
}

// VerificationKey loads and parses the public key file.
func (s *FileKeySource) VerificationKey() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.verKey != nil {
		return s.verKey, nil
	}
	if s.publicPath == "" {
		return nil, fmt.Errorf("%w: no public key path configured", ErrKeySourceUnavailable)
	}
	raw, err := os.ReadFile(s.publicPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	key, err := parsePublicKey(s.method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	s.verKey = key
	return key, nil
}

func parsePrivateKey(method SigningMethod, raw []byte) (any, error) {
	switch method {
	case MethodRS256:
		return gjwt.ParseRSAPrivateKeyFromPEM(raw)
	case MethodEdDSA:
		return parseEdPrivateKey(raw)
	default:
		return nil, errors.New("unsupported signing method")
	}
}

func parsePublicKey(method SigningMethod, raw []byte) (any, error) {
	switch method {
	case MethodRS256:
		return gjwt.ParseRSAPublicKeyFromPEM(raw)
	case MethodEdDSA:
		return parseEdPublicKey(raw)
	default:
		return nil, errors.New("unsupported signing method")
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := gjwt.ParseEdPrivateKeyFromPEM(key)
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
	parsed, err := gjwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
