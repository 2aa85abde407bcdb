package medauth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryUserStore is a map-backed UserStore for tests, demos and the
// development server. Emails are matched case-insensitively.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]User
	byEmail map[string]uuid.UUID
}

// NewMemoryUserStore returns an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[uuid.UUID]User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *MemoryUserStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryUserStore) GetUser(_ context.Context, id uuid.UUID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryUserStore) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, taken := s.byEmail[email]; taken {
		return ErrUserExists
	}
	if _, taken := s.byID[user.ID]; taken {
		return ErrUserExists
	}
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID
	return nil
}

// UpdateUser replaces the stored record. Changing the email is allowed as
// long as the new address is free.
func (s *MemoryUserStore) UpdateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[user.ID]
	if !ok {
		return ErrUserNotFound
	}

	oldEmail, newEmail := normalizeEmail(old.Email), normalizeEmail(user.Email)
	if oldEmail != newEmail {
		if _, taken := s.byEmail[newEmail]; taken {
			return ErrUserExists
		}
		delete(s.byEmail, oldEmail)
		s.byEmail[newEmail] = user.ID
	}
	s.byID[user.ID] = user
	return nil
}
