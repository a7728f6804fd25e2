package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nutritrack/authcore/internal"
)

type nonceContextKey struct{}

// NonceFromContext returns the per-request CSP nonce.
func NonceFromContext(ctx context.Context) (string, bool) {
	n, ok := ctx.Value(nonceContextKey{}).(string)
	return n, ok
}

// CSP sets a Content-Security-Policy header with a fresh nonce for scripts
// and styles. connectSources are appended to connect-src.
func CSP(connectSources []string, logger *zap.Logger) func(http.Handler) http.Handler {
	connect := strings.TrimSpace("'self' " + strings.Join(connectSources, " "))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce, err := internal.NewNonce()
			if err != nil {
				WriteError(w, r, logger, err)
				return
			}

			w.Header().Set("Content-Security-Policy", Policy(nonce, connect))
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), nonceContextKey{}, nonce)))
		})
	}
}

// Policy renders the policy for nonce.
func Policy(nonce, connect string) string {
	return fmt.Sprintf("default-src 'self'; "+
		"script-src 'self' 'nonce-%[1]s' https://cdn.jsdelivr.net https://cdnjs.cloudflare.com; "+
		"style-src 'self' 'nonce-%[1]s' https://cdn.jsdelivr.net; "+
		"style-src-attr 'self'; "+
		"font-src 'self' https://fonts.gstatic.com https://cdn.jsdelivr.net; "+
		"img-src 'self' data:; "+
		"connect-src %[2]s; "+
		"frame-src 'none'; "+
		"object-src 'none'; "+
		"form-action 'self'; "+
		"report-uri /api/v1/security/csp-report; "+
		"upgrade-insecure-requests;", nonce, connect)
}
