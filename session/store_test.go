package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nutritrack/authcore/kv"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewStore(kv.NewRedisStore(rdb, time.Second), time.Hour, 0), mr
}

func TestLoadAbsentReturnsFreshSession(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	for _, id := range []string{"", "garbage", "AAAAAAAAAAAAAAAAAAAAAA"} {
		sess, err := store.Load(ctx, id)
		if err != nil {
			t.Fatalf("Load(%q): %v", id, err)
		}
		if !sess.IsNew() || sess.CSRFToken != "" {
			t.Fatalf("Load(%q): expected fresh session, got %+v", id, sess)
		}
		if sess.ID == "" || sess.ID == id {
			t.Fatalf("Load(%q): fresh session must get a newly minted id, got %q", id, sess.ID)
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("Load must not write, found keys %v", mr.Keys())
	}
}

func TestEnsurePersistLoadRoundTrip(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	sess, err := store.Load(ctx, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sess, token, err := store.EnsureCSRFToken(sess)
	if err != nil {
		t.Fatalf("EnsureCSRFToken: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %q", token)
	}
	if _, again, _ := store.EnsureCSRFToken(sess); again != token {
		t.Fatal("EnsureCSRFToken must be idempotent")
	}

	if err := store.Persist(ctx, sess, 0); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if ttl := mr.TTL(key(sess.ID)); ttl != time.Hour {
		t.Fatalf("expected default ttl 1h, got %v", ttl)
	}

	loaded, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != sess.ID || loaded.CSRFToken != token || loaded.IsNew() {
		t.Fatalf("unexpected loaded session %+v", loaded)
	}
}

func TestPersistSlidesTTL(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	sess, _ := store.Load(ctx, "")
	_ = store.Persist(ctx, sess, 10*time.Minute)
	mr.FastForward(8 * time.Minute)

	loaded, err := store.Load(ctx, sess.ID)
	if err != nil || loaded.IsNew() {
		t.Fatalf("session must still exist, err=%v", err)
	}
	_ = store.Persist(ctx, loaded, 10*time.Minute)
	mr.FastForward(8 * time.Minute)

	again, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if again.IsNew() {
		t.Fatal("sliding ttl must keep an active session alive")
	}

	mr.FastForward(11 * time.Minute)
	expired, _ := store.Load(ctx, sess.ID)
	if !expired.IsNew() {
		t.Fatal("idle session must expire")
	}
}

func TestRegenerateKeepsCSRFTokenAndDropsOldID(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	sess, _ := store.Load(ctx, "")
	sess, token, _ := store.EnsureCSRFToken(sess)
	_ = store.Persist(ctx, sess, 0)

	next, err := store.Regenerate(ctx, sess)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if next.ID == sess.ID {
		t.Fatal("Regenerate must mint a new id")
	}
	if next.CSRFToken != token {
		t.Fatal("Regenerate must keep the CSRF token")
	}
	if mr.Exists(key(sess.ID)) {
		t.Fatal("old session record must be deleted")
	}
	if !mr.Exists(key(next.ID)) {
		t.Fatal("new session record must be persisted")
	}
}

func TestRegenerateMintsTokenWhenAbsent(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	sess, _ := store.Load(context.Background(), "")

	next, err := store.Regenerate(context.Background(), sess)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if next.CSRFToken == "" {
		t.Fatal("Regenerate must ensure a CSRF token")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()

	sess, _ := store.Load(ctx, "")
	_ = store.Persist(ctx, sess, 0)

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if err := store.Delete(ctx, "not-an-id"); err != nil {
		t.Fatalf("Delete malformed id: %v", err)
	}
	loaded, _ := store.Load(ctx, sess.ID)
	if !loaded.IsNew() {
		t.Fatal("deleted session must not load")
	}
}

func TestLoadCorruptRecordStartsFresh(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	sess, _ := store.Load(ctx, "")
	if err := mr.Set(key(sess.ID), "\xc1not msgpack"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	loaded, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.IsNew() || loaded.ID == sess.ID {
		t.Fatalf("corrupt record must yield a fresh session, got %+v", loaded)
	}
}

func TestLoadStoreUnavailable(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	sess, _ := store.Load(context.Background(), "")
	mr.Close()

	if _, err := store.Load(context.Background(), sess.ID); !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("expected kv.ErrUnavailable, got %v", err)
	}
	if err := store.Persist(context.Background(), sess, 0); !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("expected kv.ErrUnavailable, got %v", err)
	}
}

func TestPersistAppliesJitterWithinBound(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	store.jitter = time.Minute
	ctx := context.Background()

	sess, _ := store.Load(ctx, "")
	if err := store.Persist(ctx, sess, 0); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	ttl := mr.TTL(key(sess.ID))
	if ttl < time.Hour || ttl >= time.Hour+time.Minute {
		t.Fatalf("ttl %v outside [1h, 1h1m)", ttl)
	}
}

func TestContextHelpers(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context must not carry a session")
	}
	sess := &Session{ID: "x"}
	got, ok := FromContext(NewContext(context.Background(), sess))
	if !ok || got != sess {
		t.Fatal("session not recovered from context")
	}
}
