// Package store is the user service's in-memory user store.
package store

import (
	"sync"

	"github.com/tracechain-io/tracechain/internal/shared/types"
)

// Store holds user records keyed by id. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[string]types.User
}

// New creates an empty store.
func New() *Store {
	return &Store{users: make(map[string]types.User)}
}

// Seeded creates a store preloaded with the fixture users.
func Seeded() *Store {
	s := New()
	s.Put(types.User{ID: "123", Username: "otelfan", Email: "otel@example.com"})
	s.Put(types.User{ID: "456", Username: "tracing_rocks", Email: "trace@example.com"})
	return s
}

// Get returns the user for id and whether it exists.
func (s *Store) Get(id string) (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// Put inserts or replaces a user record.
func (s *Store) Put(u types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
