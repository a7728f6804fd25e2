package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nutritrack/authcore"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by [RequireAuth].
func IdentityFromContext(ctx context.Context) (authcore.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(authcore.Identity)
	return id, ok
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id authcore.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// RequireAuth resolves the access token from the Authorization header or the
// access_token cookie and rejects the request when it does not name a live
// identity.
func RequireAuth(engine *authcore.Engine, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, r, logger, authcore.ErrEngineNotReady)
				return
			}

			token, ok := AccessToken(r)
			if !ok {
				WriteError(w, r, logger, authcore.ErrCredentialsInvalid)
				return
			}

			id, err := engine.ResolveFromAccessToken(r.Context(), token)
			if err != nil {
				WriteError(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// AccessToken returns the bearer token, falling back to the access_token cookie.
func AccessToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
