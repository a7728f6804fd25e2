package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/middleware"
	"github.com/nutritrack/authcore/session"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.engine.Register(r.Context(), authcore.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, toIdentityResponse(id))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	_, pair, err := h.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.rotateSession(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeTokens(w, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	token := refreshTokenFrom(r, req.RefreshToken)
	if token == "" {
		h.fail(w, r, authcore.ErrRefreshTokenInvalid)
		return
	}

	_, pair, err := h.engine.Refresh(r.Context(), token)
	if err != nil {
		if !authcore.IsUnavailable(err) {
			middleware.ClearTokenCookies(w, h.cookies)
		}
		h.fail(w, r, err)
		return
	}
	h.writeTokens(w, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	var req refreshRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.engine.Logout(r.Context(), id, refreshTokenFrom(r, req.RefreshToken)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.endSession(w, r)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := h.engine.LogoutAll(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.endSession(w, r)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	var req changePasswordRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	// Re-authenticate so a stolen access token cannot take over the account.
	if _, err := h.engine.Authenticate(r.Context(), id.Username, req.CurrentPassword); err != nil {
		h.fail(w, r, err)
		return
	}

	pair, err := h.engine.ChangePassword(r.Context(), id, req.NewPassword, refreshTokenFrom(r, req.RefreshToken))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.rotateSession(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeTokens(w, pair)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, toIdentityResponse(id))
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.fail(w, r, errors.New("session middleware not installed"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"csrf_token": sess.CSRFToken})
}

// rotateSession moves the browser session to a fresh id after a privilege
// change. The CSRF token is preserved.
func (h *Handler) rotateSession(w http.ResponseWriter, r *http.Request) error {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return nil
	}
	store := h.engine.Sessions()
	next, err := store.Regenerate(r.Context(), sess)
	if err != nil {
		return err
	}
	middleware.SetSessionCookies(w, h.cookies, next.ID, next.CSRFToken, store.TTL())
	return nil
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	middleware.ClearTokenCookies(w, h.cookies)
	if err := h.rotateSession(w, r); err != nil {
		h.logger.Warn("session rotation after logout failed", zap.Error(err))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeTokens(w http.ResponseWriter, pair authcore.TokenPair) {
	middleware.SetTokenCookies(w, h.cookies, pair)
	middleware.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(pair.AccessExpiresAt).Round(time.Second) / time.Second),
	})
}

// refreshTokenFrom prefers the body value and falls back to the cookie.
func refreshTokenFrom(r *http.Request, body string) string {
	if body != "" {
		return body
	}
	if c, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		return c.Value
	}
	return ""
}
