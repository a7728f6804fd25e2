package csrf

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/nutritrack/authcore/session"
)

var (
	// ErrForbiddenOrigin is returned when Origin/Referer is missing or not allowed.
	ErrForbiddenOrigin = errors.New("csrf: origin not allowed")
	// ErrForbiddenNoSession is returned when no session-bound token exists.
	ErrForbiddenNoSession = errors.New("csrf: no session token")
	// ErrForbiddenCsrfMismatch is returned when the client token does not match.
	ErrForbiddenCsrfMismatch = errors.New("csrf: token mismatch")
)

const (
	DefaultHeaderName = "X-CSRF-Token"
	DefaultFormField  = "csrf_token"
	DefaultCookieName = "csrf_token"
)

// DefaultMaxFormBytes caps the body read while looking for the form field.
const DefaultMaxFormBytes int64 = 64 << 10

// Config configures a [Guard].
type Config struct {
	// AllowedOrigins lists scheme://host[:port] values accepted besides the
	// request's own host.
	AllowedOrigins []string
	// ExemptPaths are matched exactly against the request path.
	ExemptPaths   []string
	HeaderName    string
	FormField     string
	CookieName    string
	RequireCookie bool
	// MaxFormBytes bounds the form body parsed for FormField. Zero means
	// DefaultMaxFormBytes.
	MaxFormBytes int64
	// OnError writes the rejection. Nil writes a 403 JSON body.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Guard validates state-changing requests.
type Guard struct {
	allowed       map[string]struct{}
	exempt        map[string]struct{}
	headerName    string
	formField     string
	cookieName    string
	requireCookie bool
	maxFormBytes  int64
	onError       func(w http.ResponseWriter, r *http.Request, err error)
}

// NewGuard returns a Guard for cfg.
func NewGuard(cfg Config) (*Guard, error) {
	g := &Guard{
		allowed:       make(map[string]struct{}, len(cfg.AllowedOrigins)),
		exempt:        make(map[string]struct{}, len(cfg.ExemptPaths)),
		headerName:    cfg.HeaderName,
		formField:     cfg.FormField,
		cookieName:    cfg.CookieName,
		requireCookie: cfg.RequireCookie,
		maxFormBytes:  cfg.MaxFormBytes,
		onError:       cfg.OnError,
	}
	if g.headerName == "" {
		g.headerName = DefaultHeaderName
	}
	if g.formField == "" {
		g.formField = DefaultFormField
	}
	if g.cookieName == "" {
		g.cookieName = DefaultCookieName
	}
	if g.maxFormBytes <= 0 {
		g.maxFormBytes = DefaultMaxFormBytes
	}
	if g.onError == nil {
		g.onError = writeForbidden
	}

	for _, o := range cfg.AllowedOrigins {
		norm, ok := normalizeOrigin(o)
		if !ok {
			return nil, errors.New("csrf: invalid allowed origin " + o)
		}
		g.allowed[norm] = struct{}{}
	}
	for _, p := range cfg.ExemptPaths {
		g.exempt[p] = struct{}{}
	}
	return g, nil
}

// Handler wraps next with the guard.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Check(r); err != nil {
			g.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Check returns nil when r may proceed, or one of the ErrForbidden errors.
func (g *Guard) Check(r *http.Request) error {
	if isSafeMethod(r.Method) {
		return nil
	}
	if _, ok := g.exempt[r.URL.Path]; ok {
		return nil
	}

	if !g.originAllowed(r) {
		return ErrForbiddenOrigin
	}

	sess, ok := session.FromContext(r.Context())
	if !ok || sess.IsNew() || sess.CSRFToken == "" {
		return ErrForbiddenNoSession
	}
	expected := []byte(sess.CSRFToken)

	client := r.Header.Get(g.headerName)
	if client == "" {
		client = g.formToken(r)
	}
	if client == "" || subtle.ConstantTimeCompare([]byte(client), expected) != 1 {
		return ErrForbiddenCsrfMismatch
	}

	cookie, err := r.Cookie(g.cookieName)
	switch {
	case err == nil:
		if subtle.ConstantTimeCompare([]byte(cookie.Value), expected) != 1 {
			return ErrForbiddenCsrfMismatch
		}
	case g.requireCookie:
		return ErrForbiddenCsrfMismatch
	}
	return nil
}

func (g *Guard) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		ref := r.Header.Get("Referer")
		if ref == "" {
			return false
		}
		origin = ref
	}
	norm, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	if _, ok := g.allowed[norm]; ok {
		return true
	}
	u, _ := url.Parse(norm)
	return u != nil && strings.EqualFold(u.Host, r.Host)
}

func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(u.Host), true
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// formToken reads FormField from a form body of at most maxFormBytes. An
// oversized or malformed body yields "".
func (g *Guard) formToken(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || r.Body == nil {
		return ""
	}
	switch mt {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(nil, r.Body, g.maxFormBytes)
		err = r.ParseForm()
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, g.maxFormBytes)
		err = r.ParseMultipartForm(g.maxFormBytes)
	default:
		return ""
	}
	if err != nil {
		return ""
	}
	return r.PostForm.Get(g.formField)
}

func writeForbidden(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "csrf validation failed"})
}
