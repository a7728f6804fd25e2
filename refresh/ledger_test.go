package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nutritrack/authcore/kv"
)

func TestLedgerBlacklistUntilExpiry(t *testing.T) {
	backend, mr := newBackendTest(t)
	l := NewLedger(backend, nil)
	ctx := context.Background()

	if err := l.Blacklist(ctx, "tok", "u-1", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	ok, err := l.IsBlacklisted(ctx, "tok")
	if err != nil || !ok {
		t.Fatalf("expected blacklisted, ok=%v err=%v", ok, err)
	}

	ttl := mr.TTL(l.key("tok"))
	if ttl <= 9*time.Minute || ttl > 10*time.Minute {
		t.Fatalf("expected ttl close to remaining lifetime, got %v", ttl)
	}
	if v, _ := mr.Get(l.key("tok")); v != "u-1" {
		t.Fatalf("expected uid value, got %q", v)
	}

	mr.FastForward(11 * time.Minute)
	ok, err = l.IsBlacklisted(ctx, "tok")
	if err != nil || ok {
		t.Fatalf("entry must expire with the token, ok=%v err=%v", ok, err)
	}
}

func TestLedgerSkipsExpiredTokens(t *testing.T) {
	backend, mr := newBackendTest(t)
	l := NewLedger(backend, nil)
	ctx := context.Background()

	if err := l.Blacklist(ctx, "old", "u-1", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("no entry expected for an expired token, got %v", mr.Keys())
	}
}

func TestLedgerUnknownToken(t *testing.T) {
	backend, _ := newBackendTest(t)
	l := NewLedger(backend, nil)

	ok, err := l.IsBlacklisted(context.Background(), "never")
	if err != nil || ok {
		t.Fatalf("expected not blacklisted, ok=%v err=%v", ok, err)
	}
}

func TestLedgerUnavailable(t *testing.T) {
	backend, mr := newBackendTest(t)
	l := NewLedger(backend, nil)
	mr.Close()

	if _, err := l.IsBlacklisted(context.Background(), "tok"); !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("expected kv.ErrUnavailable, got %v", err)
	}
}

func TestLedgerClaimHasSingleWinner(t *testing.T) {
	backend, _ := newBackendTest(t)
	l := NewLedger(backend, nil)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	const n = 12
	var wg sync.WaitGroup
	var wins atomic.Int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ok, err := l.Claim(ctx, "tok", "u-1", exp)
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", got)
	}
	if ok, _ := l.IsBlacklisted(ctx, "tok"); !ok {
		t.Fatalf("claimed token must read as blacklisted")
	}
	if ok, _ := l.Claim(ctx, "stale", "u-1", time.Now().Add(-time.Minute)); ok {
		t.Fatalf("expired token must not be claimed")
	}
}
