package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nutritrack/authcore/internal"
	"github.com/nutritrack/authcore/kv"
)

const (
	// MaxTokensPerIdentity is the number of concurrently valid refresh tokens
	// (devices) an identity may hold.
	MaxTokensPerIdentity = 4

	recordPrefix = "refresh_token:"
	validMarker  = "valid"
)

// ErrInvalidRecord is returned when uid or token is empty, uid contains the key
// separator, or ttl is not positive.
var ErrInvalidRecord = errors.New("refresh: invalid uid, token or ttl")

// Store is the bounded per-identity refresh token registry.
type Store struct {
	kv      kv.Store
	hashKey []byte

	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewStore returns a Store over backend. hashKey may be nil.
func NewStore(backend kv.Store, hashKey []byte) *Store {
	return &Store{
		kv:      backend,
		hashKey: append([]byte(nil), hashKey...),
		now:     time.Now,
	}
}

type record struct {
	key     string
	hash    string
	created int64
}

// Add registers token for uid with the given lifetime. When uid already holds
// MaxTokensPerIdentity records the oldest are evicted first.
func (s *Store) Add(ctx context.Context, uid, token string, ttl time.Duration) error {
	if !validUID(uid) || token == "" || ttl <= 0 {
		return ErrInvalidRecord
	}
	hash := internal.HashToken(token, s.hashKey)

	records, err := s.records(ctx, uid)
	if err != nil {
		return err
	}

	var evict []string
	others := records[:0]
	for _, r := range records {
		if r.hash == hash {
			evict = append(evict, r.key)
			continue
		}
		others = append(others, r)
	}
	if excess := len(others) - (MaxTokensPerIdentity - 1); excess > 0 {
		for _, r := range others[:excess] {
			evict = append(evict, r.key)
		}
	}
	if err := s.kv.Delete(ctx, evict...); err != nil {
		return err
	}

	key := fmt.Sprintf("%s%s:%s:%d", recordPrefix, uid, hash, s.stamp())
	return s.kv.SetWithTTL(ctx, key, []byte(validMarker), ttl)
}

// Validate reports whether token is a live record for uid.
func (s *Store) Validate(ctx context.Context, uid, token string) (bool, error) {
	if !validUID(uid) || token == "" {
		return false, nil
	}
	return s.kv.ExistsByPrefix(ctx, tokenPrefix(uid, internal.HashToken(token, s.hashKey)))
}

// RevokeOne deletes the record for token. Revoking an unknown token succeeds.
func (s *Store) RevokeOne(ctx context.Context, uid, token string) error {
	if !validUID(uid) || token == "" {
		return nil
	}
	keys, err := s.kv.ListKeysByPrefix(ctx, tokenPrefix(uid, internal.HashToken(token, s.hashKey)))
	if err != nil {
		return err
	}
	return s.kv.Delete(ctx, keys...)
}

// RevokeAll deletes every record for uid.
func (s *Store) RevokeAll(ctx context.Context, uid string) error {
	if !validUID(uid) {
		return nil
	}
	records, err := s.records(ctx, uid)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.key)
	}
	return s.kv.Delete(ctx, keys...)
}

// Count returns the number of live records for uid.
func (s *Store) Count(ctx context.Context, uid string) (int, error) {
	if !validUID(uid) {
		return 0, nil
	}
	records, err := s.records(ctx, uid)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// records lists uid's records oldest first. Keys that do not parse as
// {hash}:{created} under the uid prefix are skipped.
func (s *Store) records(ctx context.Context, uid string) ([]record, error) {
	prefix := identityPrefix(uid)
	keys, err := s.kv.ListKeysByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]record, 0, len(keys))
	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		hash, ts, ok := strings.Cut(rest, ":")
		if !ok || hash == "" || strings.Contains(ts, ":") {
			continue
		}
		created, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, record{key: key, hash: hash, created: created})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].created == out[j].created {
			return out[i].key < out[j].key
		}
		return out[i].created < out[j].created
	})
	return out, nil
}

// stamp returns a creation timestamp strictly greater than any this Store
// has handed out before.
func (s *Store) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixNano()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

// validUID reports whether uid can be embedded in a record key without
// colliding with another identity's prefix.
func validUID(uid string) bool {
	return uid != "" && !strings.Contains(uid, ":")
}

func identityPrefix(uid string) string {
	return recordPrefix + uid + ":"
}

func tokenPrefix(uid, hash string) string {
	return identityPrefix(uid) + hash + ":"
}
