package jwt

import (
	"errors"
	"fmt"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod names the asymmetric algorithm used by a [Codec].
type SigningMethod string

const (
	MethodEdDSA SigningMethod = "EdDSA"
	MethodRS256 SigningMethod = "RS256"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// SubjectClaims carries the identity fields stamped into a token.
// Username and Email are only embedded in access tokens.
type SubjectClaims struct {
	Subject  string
	Username string
	Email    string
}

// Claims is the decoded payload of a verified token.
type Claims struct {
	Type     Kind   `json:"type"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	gjwt.RegisteredClaims
}

// Config configures a [Codec].
type Config struct {
	SigningMethod SigningMethod
	Keys          KeySource
	Issuer        string
	Leeway        time.Duration
}

// Codec signs and verifies tokens. It is safe for concurrent use.
type Codec struct {
	method gjwt.SigningMethod
	keys   KeySource
	issuer string
	leeway time.Duration
	parser *gjwt.Parser
	now    func() time.Time
}

// NewCodec validates cfg and returns a codec. Keys are loaded lazily on first
// use, so a missing key file surfaces as [ErrKeySourceUnavailable] per call
// rather than here.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Keys == nil {
		return nil, errors.New("jwt: key source is required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: leeway must be between 0 and 2m")
	}

	var method gjwt.SigningMethod
	switch cfg.SigningMethod {
	case MethodEdDSA, "":
		method = gjwt.SigningMethodEdDSA
	case MethodRS256:
		method = gjwt.SigningMethodRS256
	default:
		return nil, fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}

	opts := []gjwt.ParserOption{
		gjwt.WithValidMethods([]string{method.Alg()}),
		gjwt.WithExpirationRequired(),
		gjwt.WithIssuedAt(),
		gjwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, gjwt.WithIssuer(cfg.Issuer))
	}

	return &Codec{
		method: method,
		keys:   cfg.Keys,
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		parser: gjwt.NewParser(opts...),
		now:    time.Now,
	}, nil
}

// Issue mints a token of the given kind for subject, valid for ttl.
func (c *Codec) Issue(kind Kind, subject SubjectClaims, ttl time.Duration) (string, error) {
	if kind != KindAccess && kind != KindRefresh {
		return "", fmt.Errorf("jwt: unknown token kind %q", kind)
	}
	if subject.Subject == "" {
		return "", errors.New("jwt: subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("jwt: ttl must be positive")
	}

	key, err := c.keys.SigningKey()
	if err != nil {
		return "", err
	}

	now := c.now()
	claims := Claims{
		Type: kind,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   subject.Subject,
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
		},
	}
	if kind == KindAccess {
		claims.Username = subject.Username
		claims.Email = subject.Email
	}

	token := gjwt.NewWithClaims(c.method, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, expiry and (when configured)
// issuer of raw and returns its claims. It does not check the token kind;
// use [VerifyKind] for that.
func (c *Codec) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenMalformed
	}

	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(raw, claims, func(t *gjwt.Token) (any, error) {
		return c.keys.VerificationKey()
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || (claims.Type != KindAccess && claims.Type != KindRefresh) {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// VerifyKind reports [ErrTokenKindMismatch] unless claims carry the expected kind.
func VerifyKind(claims *Claims, expected Kind) error {
	if claims == nil || claims.Type != expected {
		return ErrTokenKindMismatch
	}
	return nil
}

// classify maps library errors onto this package's sentinels. The key-source
// check comes first since the parser wraps keyfunc failures as unverifiable.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrKeySourceUnavailable):
		return err
	case errors.Is(err, gjwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, gjwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
