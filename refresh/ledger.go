package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/nutritrack/authcore/internal"
	"github.com/nutritrack/authcore/kv"
)

const blacklistPrefix = "blacklist:refresh:"

// Ledger records revoked refresh tokens until they would have expired anyway.
type Ledger struct {
	kv      kv.Store
	hashKey []byte
	now     func() time.Time
}

// NewLedger returns a Ledger over backend. hashKey must match the one given
// to [NewStore].
func NewLedger(backend kv.Store, hashKey []byte) *Ledger {
	return &Ledger{
		kv:      backend,
		hashKey: append([]byte(nil), hashKey...),
		now:     time.Now,
	}
}

// Blacklist marks token revoked until expiresAt. Tokens already past expiry
// are not written.
func (l *Ledger) Blacklist(ctx context.Context, token, uid string, expiresAt time.Time) error {
	if token == "" {
		return nil
	}
	remaining := expiresAt.Sub(l.now())
	if remaining <= 0 {
		return nil
	}
	return l.kv.SetWithTTL(ctx, l.key(token), []byte(uid), remaining)
}

// Claim blacklists token only if it is not already blacklisted and reports
// whether this call did so. Concurrent claims on one token have a single
// winner. An expired token is never claimed.
func (l *Ledger) Claim(ctx context.Context, token, uid string, expiresAt time.Time) (bool, error) {
	if token == "" {
		return false, nil
	}
	remaining := expiresAt.Sub(l.now())
	if remaining <= 0 {
		return false, nil
	}
	return l.kv.SetIfAbsent(ctx, l.key(token), []byte(uid), remaining)
}

// IsBlacklisted reports whether token has been revoked.
func (l *Ledger) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, err := l.kv.Get(ctx, l.key(token))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *Ledger) key(token string) string {
	return blacklistPrefix + internal.HashToken(token, l.hashKey)
}
