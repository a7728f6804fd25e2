package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/csrf"
)

// CSRF builds the CSRF guard from the engine configuration. It must run
// inside [Session]. Rejections are counted and written as 403.
func CSRF(engine *authcore.Engine, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	cfg := engine.Config().CSRF
	guard, err := csrf.NewGuard(csrf.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		ExemptPaths:    cfg.ExemptPaths,
		CookieName:     CSRFCookie,
		RequireCookie:  cfg.RequireCookie,
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			engine.RecordCSRFRejection()
			if logger != nil {
				logger.Info("csrf rejected",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
			}
			WriteError(w, r, logger, err)
		},
	})
	if err != nil {
		return nil, err
	}
	return guard.Handler, nil
}
