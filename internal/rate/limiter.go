package rate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/nutritrack/authcore/internal"
	"github.com/nutritrack/authcore/kv"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// Limiter enforces per-username and per-IP login budgets and a per-identity
// refresh budget using fixed-window counters in the key-value store.
type Limiter struct {
	store  kv.Store
	config Config
}

// New creates a [Limiter] over store.
func New(store kv.Store, cfg Config) *Limiter {
	return &Limiter{
		store:  store,
		config: cfg,
	}
}

// CheckLogin reports [ErrRateLimited] when the username or IP has exhausted
// its failed-login budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if err := l.checkCounter(ctx, loginUserKey(username), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementLogin records a failed login attempt.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	count, err := l.store.IncrWithTTL(ctx, loginUserKey(username), l.config.LoginCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.store.IncrWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldownDuration)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, username, ip string) error {
	keys := []string{loginUserKey(username)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	return l.store.Delete(ctx, keys...)
}

// CheckRefresh counts a refresh attempt for uid and reports [ErrRateLimited]
// once the window budget is spent.
func (l *Limiter) CheckRefresh(ctx context.Context, uid string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}

	count, err := l.store.IncrWithTTL(ctx, refreshKey(uid), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}

	return nil
}

// GetLoginAttempts returns the current failed-attempt counter for username.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) GetLoginAttempts(ctx context.Context, username string) (int, error) {
	count, err := l.readCounter(ctx, loginUserKey(username))
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.readCounter(ctx, key)
	if err != nil {
		return err
	}
	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) readCounter(ctx context.Context, key string) (int64, error) {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	count, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

func loginUserKey(username string) string {
	return "rl:login:user:" + internal.HashToken(username, nil)
}

func loginIPKey(ip string) string {
	return "rl:login:ip:" + ip
}

func refreshKey(uid string) string {
	return "rl:refresh:" + uid
}
