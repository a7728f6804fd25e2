package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOperationTimeout = 2 * time.Second
	scanBatch               = 256
)

// RedisStore implements [Store] on a go-redis client.
type RedisStore struct {
	redis   redis.UniversalClient
	timeout time.Duration
}

// NewRedisStore wraps client. A non-positive timeout falls back to two seconds.
func NewRedisStore(client redis.UniversalClient, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &RedisStore{redis: client, timeout: timeout}
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Get returns the value stored at key or [ErrNotFound].
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return data, nil
}

// Set stores value without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores value with the given expiry. A zero ttl keeps the key forever.
func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// SetIfAbsent is SET NX with an expiry.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.redis.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// Delete removes keys. Missing keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// ExistsByPrefix reports whether at least one key starts with prefix. The scan
// stops at the first hit.
func (s *RedisStore) ExistsByPrefix(ctx context.Context, prefix string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var cursor uint64
	pattern := EscapePattern(prefix) + "*"
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return false, unavailable(err)
		}
		if len(keys) > 0 {
			return true, nil
		}
		cursor = next
		if cursor == 0 {
			return false, nil
		}
	}
}

// ListKeysByPrefix returns every key starting with prefix. This is an O(n)
// SCAN and is only used on small per-identity namespaces.
func (s *RedisStore) ListKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		cursor uint64
		out    []string
		seen   = map[string]struct{}{}
	)
	pattern := EscapePattern(prefix) + "*"
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, unavailable(err)
		}
		// SCAN may return a key more than once.
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// IncrWithTTL increments key, setting ttl on the first hit of the window.
func (s *RedisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if count == 1 && ttl > 0 {
		if err := s.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, unavailable(err)
		}
	}
	return count, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

var patternEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// EscapePattern escapes glob metacharacters so prefix matches literally in
// SCAN MATCH patterns.
func EscapePattern(prefix string) string {
	return patternEscaper.Replace(prefix)
}
