package userstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryCreateAndFind(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created, err := m.Create(ctx, User{UID: "u-1", Username: "alice", Email: "Alice@Example.com", PasswordHash: "h", Active: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("email must be normalized, got %q", created.Email)
	}

	for name, find := range map[string]func() (User, error){
		"uid":      func() (User, error) { return m.FindByUID(ctx, "u-1") },
		"username": func() (User, error) { return m.FindByUsername(ctx, "alice") },
		"email":    func() (User, error) { return m.FindByEmail(ctx, "ALICE@example.com") },
	} {
		u, err := find()
		if err != nil || u.UID != "u-1" {
			t.Fatalf("find by %s: user=%+v err=%v", name, u, err)
		}
	}
}

func TestMemoryDuplicate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _ = m.Create(ctx, User{UID: "u-1", Username: "alice", Email: "a@example.com", Active: true})

	if _, err := m.Create(ctx, User{UID: "u-2", Username: "alice", Email: "b@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for username, got %v", err)
	}
	if _, err := m.Create(ctx, User{UID: "u-3", Username: "bob", Email: "A@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for email, got %v", err)
	}
}

func TestMemoryInactiveUsersAreHidden(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _ = m.Create(ctx, User{UID: "u-1", Username: "alice", Email: "a@example.com", Active: true})
	m.SetActive("u-1", false)

	if _, err := m.FindByUsername(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryUpdatePasswordHash(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _ = m.Create(ctx, User{UID: "u-1", Username: "alice", Email: "a@example.com", PasswordHash: "old", Active: true})

	if err := m.UpdatePasswordHash(ctx, "u-1", "new"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	u, _ := m.FindByUID(ctx, "u-1")
	if u.PasswordHash != "new" {
		t.Fatalf("hash not updated: %q", u.PasswordHash)
	}
	if err := m.UpdatePasswordHash(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
