package authcore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nutritrack/authcore/internal/rate"
	"github.com/nutritrack/authcore/jwt"
	"github.com/nutritrack/authcore/kv"
	"github.com/nutritrack/authcore/password"
	"github.com/nutritrack/authcore/refresh"
	"github.com/nutritrack/authcore/session"
	"github.com/nutritrack/authcore/userstore"
)

// Engine orchestrates credential checks, token issuance, rotation and
// revocation. It is safe for concurrent use once built.
type Engine struct {
	config       Config
	kv           kv.Store
	users        UserStore
	codec        *jwt.Codec
	refresh      *refresh.Store
	ledger       *refresh.Ledger
	sessions     *session.Store
	passwordHash password.Hasher
	dummyHash    string
	rateLimiter  *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Ping checks the key-value backend.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.kv == nil {
		return ErrEngineNotReady
	}
	return e.kv.Ping(ctx)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Sessions exposes the browser session store to the HTTP middleware.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// Metrics returns the live counters. The result may be nil.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Authenticate checks username and password. An unknown user and a wrong
// password both yield ErrInvalidCredentials; the unknown-user path still runs
// a full hash verification.
func (e *Engine) Authenticate(ctx context.Context, username, pw string) (Identity, error) {
	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, username, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, nil)
			return Identity{}, ErrLoginRateLimited
		}
		return Identity{}, e.unavailable(ctx, "login throttle", err)
	}

	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, userstore.ErrNotFound) {
			return Identity{}, e.unavailable(ctx, "user lookup", err)
		}
		_, _ = e.passwordHash.Verify(pw, e.dummyHash)
		return Identity{}, e.failLogin(ctx, username, ip, "")
	}

	ok, err := e.passwordHash.Verify(pw, user.PasswordHash)
	if err != nil || !ok {
		return Identity{}, e.failLogin(ctx, username, ip, user.UID)
	}

	if err := e.rateLimiter.ResetLogin(ctx, username, ip); err != nil {
		e.logger.Warn("reset login throttle", zap.String("uid", user.UID), zap.Error(err))
	}
	e.upgradeHash(ctx, user, pw)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UID, nil, nil)

	return identityFromUser(user), nil
}

func (e *Engine) failLogin(ctx context.Context, username, ip, uid string) error {
	if err := e.rateLimiter.IncrementLogin(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.Warn("count failed login", zap.Error(err))
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, uid, ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

// upgradeHash re-hashes legacy bcrypt passwords with Argon2id. Failures are
// logged and the login proceeds.
func (e *Engine) upgradeHash(ctx context.Context, user User, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	hash, err := e.passwordHash.Hash(pw)
	if err != nil {
		e.logger.Warn("rehash password", zap.String("uid", user.UID), zap.Error(err))
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.UID, hash); err != nil {
		e.logger.Warn("store upgraded password hash", zap.String("uid", user.UID), zap.Error(err))
		return
	}

	e.metricInc(MetricPasswordHashUpgraded)
	e.emitAudit(ctx, auditEventPasswordHashUpgraded, true, user.UID, nil, nil)
}

// Login authenticates and issues a token pair.
func (e *Engine) Login(ctx context.Context, username, pw string) (Identity, TokenPair, error) {
	id, err := e.Authenticate(ctx, username, pw)
	if err != nil {
		return Identity{}, TokenPair{}, err
	}

	pair, err := e.IssueTokenPair(ctx, id)
	if err != nil {
		return Identity{}, TokenPair{}, err
	}
	return id, pair, nil
}

// IssueTokenPair mints an access and a refresh token for id and records the
// refresh token, evicting the identity's oldest one when at capacity.
func (e *Engine) IssueTokenPair(ctx context.Context, id Identity) (TokenPair, error) {
	now := e.now()
	subject := jwt.SubjectClaims{
		Subject:  id.UID,
		Username: id.Username,
		Email:    id.Email,
	}

	access, err := e.codec.Issue(jwt.KindAccess, subject, e.config.JWT.AccessTTL)
	if err != nil {
		return TokenPair{}, e.unavailable(ctx, "issue access token", err)
	}
	refreshToken, err := e.codec.Issue(jwt.KindRefresh, subject, e.config.JWT.RefreshTTL)
	if err != nil {
		return TokenPair{}, e.unavailable(ctx, "issue refresh token", err)
	}

	if err := e.refresh.Add(ctx, id.UID, refreshToken, e.config.JWT.RefreshTTL); err != nil {
		return TokenPair{}, e.unavailable(ctx, "store refresh token", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(e.config.JWT.AccessTTL),
		RefreshExpiresAt: now.Add(e.config.JWT.RefreshTTL),
	}, nil
}

// ResolveFromAccessToken returns the live identity behind an access token.
// Token and lookup failures yield ErrCredentialsInvalid joined with the
// cause. Backend and key-source failures pass through unchanged.
func (e *Engine) ResolveFromAccessToken(ctx context.Context, token string) (Identity, error) {
	start := e.now()
	defer e.observeLatency(MetricResolveLatency, start)

	claims, err := e.codec.Verify(token)
	if err == nil {
		err = jwt.VerifyKind(claims, jwt.KindAccess)
	}
	if err != nil {
		if errors.Is(err, ErrKeySourceUnavailable) {
			return Identity{}, e.unavailable(ctx, "verify access token", err)
		}
		e.metricInc(MetricAccessResolveFailure)
		return Identity{}, errors.Join(ErrCredentialsInvalid, err)
	}

	user, err := e.users.FindByUID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			e.metricInc(MetricAccessResolveFailure)
			return Identity{}, errors.Join(ErrCredentialsInvalid, err)
		}
		return Identity{}, e.unavailable(ctx, "user lookup", err)
	}

	return identityFromUser(user), nil
}

// ResolveFromRefreshToken returns the identity behind a refresh token that
// is well formed, unexpired, not blacklisted and still held by the store.
func (e *Engine) ResolveFromRefreshToken(ctx context.Context, token string) (Identity, error) {
	id, _, err := e.resolveRefresh(ctx, token)
	return id, err
}

func (e *Engine) resolveRefresh(ctx context.Context, token string) (Identity, *jwt.Claims, error) {
	claims, err := e.codec.Verify(token)
	if err == nil {
		err = jwt.VerifyKind(claims, jwt.KindRefresh)
	}
	if err != nil {
		if errors.Is(err, ErrKeySourceUnavailable) {
			return Identity{}, nil, e.unavailable(ctx, "verify refresh token", err)
		}
		return Identity{}, nil, errors.Join(ErrRefreshTokenInvalid, err)
	}

	revoked, err := e.ledger.IsBlacklisted(ctx, token)
	if err != nil {
		return Identity{}, nil, e.unavailable(ctx, "blacklist lookup", err)
	}
	if revoked {
		e.metricInc(MetricRefreshRevokedReplay)
		e.emitAudit(ctx, auditEventRefreshRevokedReplay, false, claims.Subject, ErrRefreshTokenRevoked, nil)
		return Identity{}, nil, errors.Join(ErrRefreshTokenInvalid, ErrRefreshTokenRevoked)
	}

	held, err := e.refresh.Validate(ctx, claims.Subject, token)
	if err != nil {
		return Identity{}, nil, e.unavailable(ctx, "refresh token lookup", err)
	}
	if !held {
		return Identity{}, nil, ErrRefreshTokenInvalid
	}

	user, err := e.users.FindByUID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return Identity{}, nil, errors.Join(ErrRefreshTokenInvalid, err)
		}
		return Identity{}, nil, e.unavailable(ctx, "user lookup", err)
	}

	return identityFromUser(user), claims, nil
}

// unavailable logs backend failures and tags user-store outages with
// ErrStoreUnavailable. Other errors are returned unchanged.
func (e *Engine) unavailable(ctx context.Context, op string, err error) error {
	if !IsUnavailable(err) {
		return err
	}
	e.metricInc(MetricStoreUnavailable)
	e.logger.Error(op, zap.String("ip", clientIPFromContext(ctx)), zap.Error(err))
	if errors.Is(err, userstore.ErrUnavailable) && !errors.Is(err, ErrStoreUnavailable) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return err
}
