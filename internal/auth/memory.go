package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-utility/internal/shared"
)

// MemoryRepository keeps users in process. It backs the memory data backend,
// where no PostgreSQL users table exists.
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[int64]User
	sessions map[string]int64
}

// NewMemoryRepository seeds the repository with the given users.
func NewMemoryRepository(users ...User) *MemoryRepository {
	repo := &MemoryRepository{
		users:    make(map[int64]User, len(users)),
		sessions: make(map[string]int64),
	}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (m *MemoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			found := user
			return &found, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *MemoryRepository) FindByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &user, nil
}

func (m *MemoryRepository) CreateSession(_ context.Context, id string, userID int64, _ time.Time, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = userID
	return nil
}

func (m *MemoryRepository) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
