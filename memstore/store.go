package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/authcore-dev/authcore"
)

// Store keeps users in process memory. Email uniqueness is enforced
// atomically under a single mutex, so concurrent inserts of the same
// address admit exactly one. IDs are assigned sequentially starting at 1.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	byID    map[uint32]authcore.User
	byEmail map[string]uint32
	nextID  uint32
}

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:    make(map[uint32]authcore.User),
		byEmail: make(map[string]uint32),
		nextID:  1,
	}
}

// emailKey canonicalizes addresses for the uniqueness index. Lookup and
// insert agree on the same folding.
func emailKey(email string) string {
	return strings.ToLower(email)
}

// Insert stores user under a fresh ID and returns the stored value. A user
// with the same email already present yields ErrUserAlreadyExists; the
// check and the write happen under one lock.
func (s *Store) Insert(_ context.Context, user authcore.User) (authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(user.Email)
	if _, exists := s.byEmail[key]; exists {
		return authcore.User{}, authcore.ErrUserAlreadyExists
	}

	user.ID = s.nextID
	s.nextID++
	s.byID[user.ID] = user
	s.byEmail[key] = user.ID
	return user, nil
}

// FindByID looks a user up by ID. Absence is reported through the found
// flag, not an error.
func (s *Store) FindByID(_ context.Context, id uint32) (authcore.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	return user, ok, nil
}

// FindByEmail looks a user up by email, case-insensitively.
func (s *Store) FindByEmail(_ context.Context, email string) (authcore.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return authcore.User{}, false, nil
	}
	return s.byID[id], true, nil
}

// Update replaces the stored user identified by user.ID. A missing user
// yields ErrUserNotFound. Changing the email re-keys the uniqueness index.
func (s *Store) Update(_ context.Context, user authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[user.ID]
	if !ok {
		return authcore.ErrUserNotFound
	}

	oldKey, newKey := emailKey(current.Email), emailKey(user.Email)
	if oldKey != newKey {
		if _, taken := s.byEmail[newKey]; taken {
			return authcore.ErrUserAlreadyExists
		}
		delete(s.byEmail, oldKey)
		s.byEmail[newKey] = user.ID
	}

	s.byID[user.ID] = user
	return nil
}
