package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned for any backing-store failure, including timeouts.
var ErrUnavailable = errors.New("key-value store unavailable")

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Store is the key-value contract consumed by the stores of this module.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfAbsent writes key only when it does not exist and reports whether
	// it did.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	ExistsByPrefix(ctx context.Context, prefix string) (bool, error)
	ListKeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	// IncrWithTTL increments key and sets ttl only when the counter is created,
	// giving fixed-window semantics.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}
