package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/middleware"
)

// Handler owns the HTTP surface of the auth core.
type Handler struct {
	engine   *authcore.Engine
	logger   *zap.Logger
	validate *validator.Validate
	cookies  authcore.CookieConfig

	metrics        http.Handler
	trustForwarded bool
	connectSources []string
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(x *Handler) { x.metrics = h }
}

// WithTrustForwarded makes the client IP come from X-Forwarded-For.
func WithTrustForwarded(trust bool) Option {
	return func(x *Handler) { x.trustForwarded = trust }
}

// WithConnectSources adds origins to the CSP connect-src directive.
func WithConnectSources(origins []string) Option {
	return func(x *Handler) { x.connectSources = append([]string(nil), origins...) }
}

func New(engine *authcore.Engine, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		engine:   engine,
		logger:   logger.Named("http"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cookies:  engine.Config().Cookie,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the full middleware chain around every route.
func (h *Handler) Routes() (http.Handler, error) {
	auth := middleware.RequireAuth(h.engine, h.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", h.register)
	mux.HandleFunc("POST /api/v1/auth/login", h.login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.refresh)
	mux.Handle("POST /api/v1/auth/logout", auth(http.HandlerFunc(h.logout)))
	mux.Handle("POST /api/v1/auth/logout-all", auth(http.HandlerFunc(h.logoutAll)))
	mux.Handle("POST /api/v1/auth/change-password", auth(http.HandlerFunc(h.changePassword)))
	mux.Handle("GET /api/v1/auth/me", auth(http.HandlerFunc(h.me)))
	mux.HandleFunc("GET /api/v1/auth/csrf", h.csrfToken)
	mux.HandleFunc("POST /api/v1/security/csp-report", h.cspReport)
	mux.HandleFunc("GET /healthz", h.healthz)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	csrfMW, err := middleware.CSRF(h.engine, h.logger)
	if err != nil {
		return nil, err
	}

	var handler http.Handler = mux
	handler = csrfMW(handler)
	handler = middleware.Session(h.engine, h.logger)(handler)
	handler = middleware.CSP(h.connectSources, h.logger)(handler)
	handler = middleware.ClientInfo(h.trustForwarded)(handler)
	return handler, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, h.logger, err)
}
