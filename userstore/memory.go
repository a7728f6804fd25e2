package userstore

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu         sync.RWMutex
	byUID      map[string]User
	byUsername map[string]string
	byEmail    map[string]string
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		byUID:      make(map[string]User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (m *Memory) FindByUID(_ context.Context, uid string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active(uid)
}

func (m *Memory) FindByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.byUsername[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.active(uid)
}

func (m *Memory) FindByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.active(uid)
}

func (m *Memory) UpdatePasswordHash(_ context.Context, uid, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byUID[uid]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	m.byUID[uid] = u
	return nil
}

// Create stores user. Usernames are case-sensitive, emails are not.
func (m *Memory) Create(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := m.byUID[user.UID]; ok {
		return User{}, ErrDuplicate
	}
	if _, ok := m.byUsername[user.Username]; ok {
		return User{}, ErrDuplicate
	}
	if _, ok := m.byEmail[email]; ok {
		return User{}, ErrDuplicate
	}

	user.Email = email
	m.byUID[user.UID] = user
	m.byUsername[user.Username] = user.UID
	m.byEmail[email] = user.UID
	return user, nil
}

// SetActive toggles whether lookups return the user.
func (m *Memory) SetActive(uid string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byUID[uid]; ok {
		u.Active = active
		m.byUID[uid] = u
	}
}

func (m *Memory) active(uid string) (User, error) {
	u, ok := m.byUID[uid]
	if !ok || !u.Active {
		return User{}, ErrNotFound
	}
	return u, nil
}
