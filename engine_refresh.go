package authcore

import (
	"context"
	"errors"

	"github.com/nutritrack/authcore/internal/rate"
)

// Refresh rotates a refresh token: the presented token is blacklisted and
// revoked, then a new pair is issued for the same identity. Of several
// concurrent rotations of one token exactly one succeeds.
func (e *Engine) Refresh(ctx context.Context, token string) (Identity, TokenPair, error) {
	id, claims, err := e.resolveRefresh(ctx, token)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", err, nil)
		return Identity{}, TokenPair{}, err
	}

	if err := e.rateLimiter.CheckRefresh(ctx, id.UID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, id.UID, ErrRefreshRateLimited, nil)
			return Identity{}, TokenPair{}, ErrRefreshRateLimited
		}
		return Identity{}, TokenPair{}, e.unavailable(ctx, "refresh throttle", err)
	}

	claimed, err := e.ledger.Claim(ctx, token, id.UID, claims.ExpiresAt.Time)
	if err != nil {
		return Identity{}, TokenPair{}, e.unavailable(ctx, "blacklist refresh token", err)
	}
	if !claimed {
		// Lost a race with a concurrent rotation of the same token.
		e.metricInc(MetricRefreshRevokedReplay)
		e.metricInc(MetricRefreshFailure)
		return Identity{}, TokenPair{}, errors.Join(ErrRefreshTokenInvalid, ErrRefreshTokenRevoked)
	}
	if err := e.refresh.RevokeOne(ctx, id.UID, token); err != nil {
		return Identity{}, TokenPair{}, e.unavailable(ctx, "revoke refresh token", err)
	}

	pair, err := e.IssueTokenPair(ctx, id)
	if err != nil {
		return Identity{}, TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, id.UID, nil, nil)

	return id, pair, nil
}

// Logout revokes refreshToken for id and, while it is still valid,
// blacklists it. Other devices are unaffected. Repeated calls succeed.
func (e *Engine) Logout(ctx context.Context, id Identity, refreshToken string) error {
	if refreshToken != "" {
		if err := e.refresh.RevokeOne(ctx, id.UID, refreshToken); err != nil {
			return e.unavailable(ctx, "revoke refresh token", err)
		}
		if err := e.blacklistOwned(ctx, id, refreshToken); err != nil {
			return e.unavailable(ctx, "blacklist refresh token", err)
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, id.UID, nil, nil)
	return nil
}

// LogoutAll revokes every refresh token held by id.
func (e *Engine) LogoutAll(ctx context.Context, id Identity) error {
	if err := e.refresh.RevokeAll(ctx, id.UID); err != nil {
		return e.unavailable(ctx, "revoke refresh tokens", err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, id.UID, nil, nil)
	return nil
}

// RecordCSPViolation counts a browser CSP report.
func (e *Engine) RecordCSPViolation() {
	e.metricInc(MetricCSPViolationReported)
}

// RecordCSRFRejection counts a request refused by the CSRF guard.
func (e *Engine) RecordCSRFRejection() {
	e.metricInc(MetricCSRFRejected)
}
