package userstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zgoteam/authengine"
)

// MemoryStore is an in-memory authengine.UserStore for examples and tests.
// It applies the same uniqueness semantics as [PostgresStore], including
// case-insensitive username and email matching.
//
// MemoryStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MemoryStore struct {
	mu      sync.RWMutex
	byName  map[string]*authengine.User
	byEmail map[string]*authengine.User
}

// NewMemoryStore describes the newmemorystore operation and its observable behavior.
//
// NewMemoryStore may return an error when input validation, dependency calls, or security checks fail.
// NewMemoryStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName:  make(map[string]*authengine.User),
		byEmail: make(map[string]*authengine.User),
	}
}

// FindByUsername describes the findbyusername operation and its observable behavior.
//
// FindByUsername may return an error when input validation, dependency calls, or security checks fail.
// FindByUsername does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (*authengine.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return nil, authengine.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// FindByEmail describes the findbyemail operation and its observable behavior.
//
// FindByEmail may return an error when input validation, dependency calls, or security checks fail.
// FindByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*authengine.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, authengine.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryStore) Create(ctx context.Context, user *authengine.User) (*authengine.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := strings.ToLower(user.Username)
	emailKey := strings.ToLower(user.Email)

	if _, exists := s.byName[nameKey]; exists {
		return nil, authengine.ErrUsernameTaken
	}
	if _, exists := s.byEmail[emailKey]; exists {
		return nil, authengine.ErrEmailTaken
	}

	stored := cloneUser(user)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.byName[nameKey] = stored
	s.byEmail[emailKey] = stored

	return cloneUser(stored), nil
}

// UpdatePasswordHash implements the optional authengine.HashUpgrader
// interface.
func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return authengine.ErrUserNotFound
	}
	user.PasswordHash = hash
	return nil
}

// SetRoles replaces the stored role set for a user. Tests use it to observe
// role changes taking effect on the next authenticated request.
func (s *MemoryStore) SetRoles(username string, roles []authengine.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return authengine.ErrUserNotFound
	}
	user.Roles = append([]authengine.Role(nil), roles...)
	return nil
}

func cloneUser(u *authengine.User) *authengine.User {
	out := *u
	out.Roles = append([]authengine.Role(nil), u.Roles...)
	return &out
}
