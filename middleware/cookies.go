package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/csrf"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	SessionCookie      = "session_id"
	CSRFCookie         = csrf.DefaultCookieName
)

func baseCookie(cfg authcore.CookieConfig, name, value string) *http.Cookie {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSiteMode(),
	}
}

// SetTokenCookies writes the access and refresh tokens as HttpOnly cookies
// that expire with the tokens.
func SetTokenCookies(w http.ResponseWriter, cfg authcore.CookieConfig, pair authcore.TokenPair) {
	access := baseCookie(cfg, AccessTokenCookie, pair.AccessToken)
	access.Expires = pair.AccessExpiresAt
	access.MaxAge = maxAge(pair.AccessExpiresAt)
	replaceCookie(w, access)

	refresh := baseCookie(cfg, RefreshTokenCookie, pair.RefreshToken)
	refresh.Expires = pair.RefreshExpiresAt
	refresh.MaxAge = maxAge(pair.RefreshExpiresAt)
	replaceCookie(w, refresh)
}

// ClearTokenCookies expires both token cookies.
func ClearTokenCookies(w http.ResponseWriter, cfg authcore.CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := baseCookie(cfg, name, "")
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		replaceCookie(w, c)
	}
}

// SetSessionCookies writes the HttpOnly session cookie and the script-readable
// CSRF cookie.
func SetSessionCookies(w http.ResponseWriter, cfg authcore.CookieConfig, sessionID, csrfToken string, ttl time.Duration) {
	sid := baseCookie(cfg, SessionCookie, sessionID)
	sid.MaxAge = int(ttl / time.Second)
	replaceCookie(w, sid)

	tok := baseCookie(cfg, CSRFCookie, csrfToken)
	tok.HttpOnly = false
	tok.MaxAge = int(ttl / time.Second)
	replaceCookie(w, tok)
}

// replaceCookie sets c, dropping any Set-Cookie already queued for the same name.
func replaceCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	prefix := c.Name + "="
	kept := h["Set-Cookie"][:0]
	for _, v := range h["Set-Cookie"] {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		h.Del("Set-Cookie")
	} else {
		h["Set-Cookie"] = kept
	}
	http.SetCookie(w, c)
}

func maxAge(expires time.Time) int {
	s := int(time.Until(expires) / time.Second)
	if s <= 0 {
		return -1
	}
	return s
}
