package userstore

import (
	"context"
	"sync"

	"github.com/MrEthical07/memoauth"
)

// Memory is a map-backed memoauth.UserStore for tests, demos and the load
// generator.
type Memory struct {
	mu    sync.RWMutex
	users map[string]memoauth.User
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]memoauth.User)}
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (memoauth.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return memoauth.User{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	return u, ok, nil
}

func (m *Memory) UserExists(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[email]
	return ok, nil
}

// SaveUser inserts u. A second insert for the same email fails with
// memoauth.ErrEmailAlreadyExists.
func (m *Memory) SaveUser(ctx context.Context, u memoauth.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return memoauth.ErrEmailAlreadyExists
	}
	m.users[u.Email] = u
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
