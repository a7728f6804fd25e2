package jwt

import "errors"

var (
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when a token cannot be decoded or lacks required claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalidSignature is returned when the signature or algorithm does not verify.
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	// ErrTokenKindMismatch is returned when a token is presented for the wrong operation.
	ErrTokenKindMismatch = errors.New("token kind mismatch")
	// ErrKeySourceUnavailable is returned when signing or verification keys cannot be loaded.
	ErrKeySourceUnavailable = errors.New("key source unavailable")
)
