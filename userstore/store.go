package userstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrDuplicate   = errors.New("username or email already registered")
	ErrUnavailable = errors.New("user store unavailable")
)

// User is a stored account.
type User struct {
	UID          string
	Username     string
	Email        string
	Role         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// Store is the user persistence contract.
type Store interface {
	FindByUID(ctx context.Context, uid string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	UpdatePasswordHash(ctx context.Context, uid, hash string) error
	Create(ctx context.Context, user User) (User, error)
}
