package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/nutritrack/authcore/jwt"
	"github.com/nutritrack/authcore/password"
	"github.com/nutritrack/authcore/userstore"
)

// Register creates an active user. Username and email must both be unused.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (Identity, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || !strings.Contains(email, "@") {
		return Identity{}, e.failRegister(ctx, ErrInvalidRegistration, "invalid_fields")
	}

	hash, err := e.hashNewPassword(in.Password)
	if err != nil {
		return Identity{}, e.failRegister(ctx, err, "password_policy")
	}

	if err := e.ensureUnused(ctx, func(ctx context.Context) (User, error) {
		return e.users.FindByUsername(ctx, username)
	}); err != nil {
		return Identity{}, e.failRegister(ctx, err, "username")
	}
	if err := e.ensureUnused(ctx, func(ctx context.Context) (User, error) {
		return e.users.FindByEmail(ctx, email)
	}); err != nil {
		return Identity{}, e.failRegister(ctx, err, "email")
	}

	role := in.Role
	if role == "" {
		role = defaultRole
	}

	created, err := e.users.Create(ctx, User{
		UID:          uuid.NewString(),
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    e.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicate) {
			return Identity{}, e.failRegister(ctx, ErrIdentityExists, "create")
		}
		return Identity{}, e.failRegister(ctx, e.unavailable(ctx, "create user", err), "create")
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.UID, nil, nil)

	return identityFromUser(created), nil
}

func (e *Engine) ensureUnused(ctx context.Context, find func(context.Context) (User, error)) error {
	_, err := find(ctx)
	switch {
	case err == nil:
		return ErrIdentityExists
	case errors.Is(err, userstore.ErrNotFound):
		return nil
	default:
		return e.unavailable(ctx, "user lookup", err)
	}
}

func (e *Engine) failRegister(ctx context.Context, err error, reason string) error {
	switch {
	case errors.Is(err, ErrIdentityExists):
		e.metricInc(MetricRegisterDuplicate)
	case errors.Is(err, ErrInvalidRegistration), errors.Is(err, ErrPasswordPolicy):
		e.metricInc(MetricRegisterRejected)
	}
	e.emitAudit(ctx, auditEventRegisterFailure, false, "", err, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return err
}

// hashNewPassword enforces the password policy and returns an Argon2id hash.
func (e *Engine) hashNewPassword(pw string) (string, error) {
	if len(pw) < e.config.Password.MinLength {
		return "", ErrPasswordPolicy
	}
	hash, err := e.passwordHash.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return "", errors.Join(ErrPasswordPolicy, err)
		}
		return "", err
	}
	return hash, nil
}

// ChangePassword stores a new hash for id, revokes every refresh token the
// identity holds, blacklists currentRefresh and issues a fresh pair for the
// calling device. Other devices must log in again.
func (e *Engine) ChangePassword(ctx context.Context, id Identity, newPassword, currentRefresh string) (TokenPair, error) {
	pair, err := e.changePassword(ctx, id, newPassword, currentRefresh)
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, id.UID, err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, id.UID, nil, nil)
	return pair, nil
}

func (e *Engine) changePassword(ctx context.Context, id Identity, newPassword, currentRefresh string) (TokenPair, error) {
	if id.UID == "" {
		return TokenPair{}, ErrCredentialsInvalid
	}

	hash, err := e.hashNewPassword(newPassword)
	if err != nil {
		return TokenPair{}, err
	}

	if err := e.users.UpdatePasswordHash(ctx, id.UID, hash); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return TokenPair{}, errors.Join(ErrCredentialsInvalid, err)
		}
		return TokenPair{}, e.unavailable(ctx, "update password hash", err)
	}

	if err := e.refresh.RevokeAll(ctx, id.UID); err != nil {
		return TokenPair{}, e.unavailable(ctx, "revoke refresh tokens", err)
	}
	if err := e.blacklistOwned(ctx, id, currentRefresh); err != nil {
		return TokenPair{}, e.unavailable(ctx, "blacklist refresh token", err)
	}

	return e.IssueTokenPair(ctx, id)
}

// blacklistOwned blacklists token when it verifies as a refresh token whose
// subject is id. Anything else is ignored.
func (e *Engine) blacklistOwned(ctx context.Context, id Identity, token string) error {
	if token == "" {
		return nil
	}
	claims, err := e.codec.Verify(token)
	if err != nil || jwt.VerifyKind(claims, jwt.KindRefresh) != nil || claims.Subject != id.UID {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return e.ledger.Blacklist(ctx, token, id.UID, claims.ExpiresAt.Time)
}
