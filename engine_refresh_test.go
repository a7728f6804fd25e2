package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/nutritrack/authcore/refresh"
)

func TestRefreshRotatesAndBlacklistsOldToken(t *testing.T) {
	f := newEngineTest(t, nil)
	registered := f.register(t, "alice", "a@x.com", "pw12345678")
	pair := f.login(t, "alice", "pw12345678")
	ctx := context.Background()

	id, next, err := f.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if id.UID != registered.UID {
		t.Fatalf("refresh identity mismatch: %+v", id)
	}
	if next.RefreshToken == pair.RefreshToken || next.AccessToken == pair.AccessToken {
		t.Fatalf("rotation must mint new tokens")
	}

	_, _, err = f.engine.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenInvalid) || !errors.Is(err, ErrRefreshTokenRevoked) {
		t.Fatalf("expected revoked replay, got %v", err)
	}
	if got := f.engine.Metrics().Value(MetricRefreshRevokedReplay); got != 1 {
		t.Fatalf("expected one replay, got %d", got)
	}

	if _, err := f.engine.ResolveFromRefreshToken(ctx, next.RefreshToken); err != nil {
		t.Fatalf("rotated token must resolve: %v", err)
	}
	if n, _ := f.engine.ActiveRefreshTokens(ctx, id); n != 1 {
		t.Fatalf("expected one live refresh token, got %d", n)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newEngineTest(t, nil)
	f.register(t, "alice", "a@x.com", "pw12345678")
	pair := f.login(t, "alice", "pw12345678")

	_, _, err := f.engine.Refresh(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrRefreshTokenInvalid) || !errors.Is(err, ErrTokenKindMismatch) {
		t.Fatalf("expected kind mismatch, got %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	f := newEngineTest(t, func(c *Config) {
		c.Security.MaxRefreshAttempts = 2
	})
	f.register(t, "alice", "a@x.com", "pw12345678")
	pair := f.login(t, "alice", "pw12345678")
	ctx := context.Background()

	token := pair.RefreshToken
	for i := 0; i < 2; i++ {
		_, next, err := f.engine.Refresh(ctx, token)
		if err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
		token = next.RefreshToken
	}

	if _, _, err := f.engine.Refresh(ctx, token); !errors.Is(err, ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}
	if _, err := f.engine.ResolveFromRefreshToken(ctx, token); err != nil {
		t.Fatalf("a throttled token stays usable: %v", err)
	}
}

func TestTwoDevicesRevokeIndependently(t *testing.T) {
	f := newEngineTest(t, nil)
	id := f.register(t, "alice", "a@x.com", "pw12345678")
	deviceA := f.login(t, "alice", "pw12345678")
	deviceB := f.login(t, "alice", "pw12345678")
	ctx := context.Background()

	for _, tok := range []string{deviceA.RefreshToken, deviceB.RefreshToken} {
		if _, err := f.engine.ResolveFromRefreshToken(ctx, tok); err != nil {
			t.Fatalf("both devices must validate: %v", err)
		}
	}

	if err := f.engine.Logout(ctx, id, deviceA.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := f.engine.Logout(ctx, id, deviceA.RefreshToken); err != nil {
		t.Fatalf("second logout must be a no-op: %v", err)
	}

	if _, err := f.engine.ResolveFromRefreshToken(ctx, deviceA.RefreshToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("device A must be revoked, got %v", err)
	}
	if _, err := f.engine.ResolveFromRefreshToken(ctx, deviceB.RefreshToken); err != nil {
		t.Fatalf("device B must stay valid: %v", err)
	}
}

func TestLogoutIgnoresForeignRefreshToken(t *testing.T) {
	f := newEngineTest(t, nil)
	alice := f.register(t, "alice", "a@x.com", "pw12345678")
	f.register(t, "bob", "b@x.com", "pw12345678")
	bobPair := f.login(t, "bob", "pw12345678")
	ctx := context.Background()

	if err := f.engine.Logout(ctx, alice, bobPair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.engine.ResolveFromRefreshToken(ctx, bobPair.RefreshToken); err != nil {
		t.Fatalf("another identity's token must be untouched: %v", err)
	}
}

func TestLogoutAllRevokesEveryDevice(t *testing.T) {
	f := newEngineTest(t, nil)
	id := f.register(t, "alice", "a@x.com", "pw12345678")
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		tokens = append(tokens, f.login(t, "alice", "pw12345678").RefreshToken)
	}

	if err := f.engine.LogoutAll(ctx, id); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	for i, tok := range tokens {
		if _, err := f.engine.ResolveFromRefreshToken(ctx, tok); !errors.Is(err, ErrRefreshTokenInvalid) {
			t.Fatalf("token %d must be invalid, got %v", i, err)
		}
	}
	if got := f.engine.Metrics().Value(MetricLogoutAll); got != 1 {
		t.Fatalf("expected logout-all metric, got %d", got)
	}
}

func TestLoginCapacityEvictsOldestDevice(t *testing.T) {
	f := newEngineTest(t, nil)
	id := f.register(t, "alice", "a@x.com", "pw12345678")
	ctx := context.Background()

	var tokens []string
	for i := 0; i < refresh.MaxTokensPerIdentity+1; i++ {
		tokens = append(tokens, f.login(t, "alice", "pw12345678").RefreshToken)
	}

	if _, err := f.engine.ResolveFromRefreshToken(ctx, tokens[0]); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("oldest device must be evicted, got %v", err)
	}
	for i, tok := range tokens[1:] {
		if _, err := f.engine.ResolveFromRefreshToken(ctx, tok); err != nil {
			t.Fatalf("token %d must stay valid: %v", i+1, err)
		}
	}
	if n, err := f.engine.ActiveRefreshTokens(ctx, id); err != nil || n != refresh.MaxTokensPerIdentity {
		t.Fatalf("expected %d live tokens, got %d err=%v", refresh.MaxTokensPerIdentity, n, err)
	}
}
