package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/session"
)

// Session loads or mints the browser session named by the session_id cookie,
// guarantees it carries a CSRF token, renews its TTL and refreshes both
// session cookies before calling next. The session is available through
// session.FromContext.
func Session(engine *authcore.Engine, logger *zap.Logger) func(http.Handler) http.Handler {
	store := engine.Sessions()
	cookies := engine.Config().Cookie

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}

			sess, err := store.Load(r.Context(), id)
			if err != nil {
				WriteError(w, r, logger, err)
				return
			}
			sess, token, err := store.EnsureCSRFToken(sess)
			if err != nil {
				WriteError(w, r, logger, err)
				return
			}
			if err := store.Persist(r.Context(), sess, 0); err != nil {
				WriteError(w, r, logger, err)
				return
			}

			SetSessionCookies(w, cookies, sess.ID, token, store.TTL())
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}
