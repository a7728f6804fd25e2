package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/middleware"
)

const maxBodyBytes = 64 << 10

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,printascii"`
	Email    string `json:"email" validate:"required,email,max=254"`
	// Length policy is enforced by the engine so the error is ErrPasswordPolicy.
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=4096"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty,jwt"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,nefield=CurrentPassword"`
	RefreshToken    string `json:"refresh_token" validate:"omitempty,jwt"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type identityResponse struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func toIdentityResponse(id authcore.Identity) identityResponse {
	return identityResponse{
		UID:      id.UID,
		Username: id.Username,
		Email:    id.Email,
		Role:     id.Role,
	}
}

// decode reads a JSON body into v, or a form body when allowForm is set, and
// validates the result. Every failure wraps middleware.ErrBadRequest.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, allowForm bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case allowForm && mt == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("%w: %v", middleware.ErrBadRequest, err)
		}
		if lr, ok := v.(*loginRequest); ok {
			lr.Username = r.PostForm.Get("username")
			lr.Password = r.PostForm.Get("password")
		}
	default:
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %v", middleware.ErrBadRequest, err)
		}
	}

	if err := h.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", middleware.ErrBadRequest, err)
	}
	return nil
}
