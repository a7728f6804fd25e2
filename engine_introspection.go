package authcore

import (
	"context"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	StoreAvailable bool          `json:"store_available"`
	StoreLatency   time.Duration `json:"store_latency"`
}

// Health pings the key-value backend and reports its round-trip latency.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.kv == nil {
		return HealthStatus{}
	}

	start := e.now()
	err := e.kv.Ping(ctx)
	return HealthStatus{
		StoreAvailable: err == nil,
		StoreLatency:   e.now().Sub(start),
	}
}

// ActiveRefreshTokens returns how many refresh tokens id currently holds.
// The result never exceeds refresh.MaxTokensPerIdentity.
func (e *Engine) ActiveRefreshTokens(ctx context.Context, id Identity) (int, error) {
	if e == nil || e.refresh == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.refresh.Count(ctx, id.UID)
	if err != nil {
		return 0, e.unavailable(ctx, "count refresh tokens", err)
	}
	return n, nil
}

// GetLoginAttempts returns the failed-login counter for username.
func (e *Engine) GetLoginAttempts(ctx context.Context, username string) (int, error) {
	if e == nil || e.rateLimiter == nil {
		return 0, ErrEngineNotReady
	}
	if username == "" {
		return 0, nil
	}

	return e.rateLimiter.GetLoginAttempts(ctx, username)
}
