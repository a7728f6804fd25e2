package session

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/nutritrack/authcore/internal"
	"github.com/nutritrack/authcore/kv"
)

const (
	keyPrefix     = "session:"
	minSlidingTTL = time.Second
)

// Store loads and saves sessions in a key-value store. Concurrent writes to
// the same session are last-write-wins.
type Store struct {
	kv     kv.Store
	ttl    time.Duration
	jitter time.Duration
	now    func() time.Time
}

// NewStore returns a Store whose records live for ttl after each Persist.
// A positive jitter adds up to that much random extra lifetime per write so
// sessions created together do not expire together.
func NewStore(backend kv.Store, ttl, jitter time.Duration) *Store {
	if ttl < minSlidingTTL {
		ttl = minSlidingTTL
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Store{
		kv:     backend,
		ttl:    ttl,
		jitter: jitter,
		now:    time.Now,
	}
}

// TTL returns the sliding lifetime applied by Persist.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Load returns the session stored under sessionID. An empty, malformed,
// unknown or unreadable id yields a fresh unsaved session with a new id and
// no CSRF token.
func (s *Store) Load(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return s.fresh()
	}

	data, err := s.kv.Get(ctx, key(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return s.fresh()
		}
		return nil, err
	}

	sess, err := Decode(data)
	if err != nil || sess.ID != sessionID {
		return s.fresh()
	}
	return sess, nil
}

// EnsureCSRFToken assigns a CSRF token if sess has none and returns it.
// Calling it again returns the same token.
func (s *Store) EnsureCSRFToken(sess *Session) (*Session, string, error) {
	if sess == nil {
		return nil, "", errors.New("session is nil")
	}
	if sess.CSRFToken != "" {
		return sess, sess.CSRFToken, nil
	}
	token, err := internal.NewCSRFToken()
	if err != nil {
		return nil, "", err
	}
	sess.CSRFToken = token
	return sess, token, nil
}

// Persist writes sess with a fresh sliding TTL. A non-positive ttl uses the
// store default. IsNew keeps reporting how the session was obtained.
func (s *Store) Persist(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil {
		return errors.New("session is nil")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	return s.kv.SetWithTTL(ctx, key(sess.ID), data, s.withJitter(ttl))
}

// Regenerate moves sess to a new id, keeping its CSRF token (or minting one
// if absent), persists it and deletes the old record.
func (s *Store) Regenerate(ctx context.Context, sess *Session) (*Session, error) {
	if sess == nil {
		return nil, errors.New("session is nil")
	}
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	next := &Session{
		ID:        sid.String(),
		CSRFToken: sess.CSRFToken,
		CreatedAt: s.now().Unix(),
	}
	if _, _, err := s.EnsureCSRFToken(next); err != nil {
		return nil, err
	}
	if err := s.Persist(ctx, next, 0); err != nil {
		return nil, err
	}
	if err := s.Delete(ctx, sess.ID); err != nil {
		return nil, err
	}
	return next, nil
}

// Delete removes the session record. Deleting an absent session succeeds.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil
	}
	return s.kv.Delete(ctx, key(sessionID))
}

func (s *Store) fresh() (*Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        sid.String(),
		CreatedAt: s.now().Unix(),
		isNew:     true,
	}, nil
}

func (s *Store) withJitter(ttl time.Duration) time.Duration {
	if s.jitter <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(s.jitter)))
	if err != nil {
		return ttl
	}
	return ttl + time.Duration(n.Int64())
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}
