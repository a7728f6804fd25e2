package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nutritrack/authcore"
)

// ErrBadRequest marks an undecodable or invalid request payload.
var ErrBadRequest = errors.New("bad request")

type errorMapping struct {
	target  error
	status  int
	message string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{authcore.ErrForbiddenOrigin, http.StatusForbidden, "csrf validation failed"},
	{authcore.ErrForbiddenNoSession, http.StatusForbidden, "csrf validation failed"},
	{authcore.ErrForbiddenCsrfMismatch, http.StatusForbidden, "csrf validation failed"},
	{authcore.ErrLoginRateLimited, http.StatusTooManyRequests, "too many requests"},
	{authcore.ErrRefreshRateLimited, http.StatusTooManyRequests, "too many requests"},
	{authcore.ErrIdentityExists, http.StatusConflict, "username or email already registered"},
	{authcore.ErrPasswordPolicy, http.StatusBadRequest, "password does not meet policy"},
	{authcore.ErrInvalidRegistration, http.StatusBadRequest, "invalid registration"},
	{ErrBadRequest, http.StatusBadRequest, "bad request"},
	{authcore.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{authcore.ErrCredentialsInvalid, http.StatusUnauthorized, "unauthorized"},
	{authcore.ErrRefreshTokenInvalid, http.StatusUnauthorized, "unauthorized"},
	{authcore.ErrTokenExpired, http.StatusUnauthorized, "unauthorized"},
	{authcore.ErrTokenMalformed, http.StatusUnauthorized, "unauthorized"},
	{authcore.ErrTokenInvalidSignature, http.StatusUnauthorized, "unauthorized"},
	{authcore.ErrTokenKindMismatch, http.StatusUnauthorized, "unauthorized"},
	{authcore.ErrUserNotFound, http.StatusUnauthorized, "unauthorized"},
}

// StatusFor maps an engine error onto an HTTP status and a client-safe message.
func StatusFor(err error) (int, string) {
	if authcore.IsUnavailable(err) {
		return http.StatusServiceUnavailable, "service unavailable"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// WriteError writes err as a JSON error body. 5xx errors are logged with
// their full cause; the client only sees the generic message.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
