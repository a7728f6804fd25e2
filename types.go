package authcore

import (
	"time"

	"github.com/nutritrack/authcore/userstore"
)

// Identity is the authenticated principal.
type Identity struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// UserStore is the persistence contract for user records.
type UserStore = userstore.Store

// User is a stored user record.
type User = userstore.User

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RegisterInput carries a self-service registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

const defaultRole = "user"

func identityFromUser(u User) Identity {
	return Identity{
		UID:      u.UID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
