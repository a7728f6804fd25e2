package authcore

import (
	"errors"

	"github.com/nutritrack/authcore/csrf"
	"github.com/nutritrack/authcore/jwt"
	"github.com/nutritrack/authcore/kv"
	"github.com/nutritrack/authcore/userstore"
)

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong
	// password. Callers cannot tell the two cases apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCredentialsInvalid is returned when an access token does not resolve
	// to a live identity.
	ErrCredentialsInvalid = errors.New("credentials invalid")
	// ErrRefreshTokenInvalid is returned when a refresh token is unusable.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	// ErrRefreshTokenRevoked is joined with ErrRefreshTokenInvalid for blacklisted tokens.
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
	ErrLoginRateLimited    = errors.New("login rate limited")
	ErrRefreshRateLimited  = errors.New("refresh rate limited")
	ErrIdentityExists      = errors.New("identity already exists")
	ErrPasswordPolicy      = errors.New("password policy violation")
	// ErrInvalidRegistration is returned for empty or malformed registration fields.
	ErrInvalidRegistration = errors.New("invalid registration request")
	ErrEngineNotReady      = errors.New("engine not initialized")
)

// Errors owned by sub-packages, re-exported so callers need one import.
var (
	ErrTokenExpired          = jwt.ErrTokenExpired
	ErrTokenMalformed        = jwt.ErrTokenMalformed
	ErrTokenInvalidSignature = jwt.ErrTokenInvalidSignature
	ErrTokenKindMismatch     = jwt.ErrTokenKindMismatch
	ErrKeySourceUnavailable  = jwt.ErrKeySourceUnavailable

	ErrStoreUnavailable = kv.ErrUnavailable
	ErrUserNotFound     = userstore.ErrNotFound

	ErrForbiddenOrigin       = csrf.ErrForbiddenOrigin
	ErrForbiddenNoSession    = csrf.ErrForbiddenNoSession
	ErrForbiddenCsrfMismatch = csrf.ErrForbiddenCsrfMismatch
)

// IsUnavailable reports whether err stems from a backing store or the key
// source rather than from the caller's input.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, userstore.ErrUnavailable) ||
		errors.Is(err, ErrKeySourceUnavailable)
}
