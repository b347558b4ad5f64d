package wsoauth

import (
	"sync"

	"github.com/google/uuid"
)

// MemorySessionStore is an in-process SessionStore for tests and for hosts
// that keep their session scope in memory. Commit is a no-op; values are
// visible as soon as they are set.
type MemorySessionStore struct {
	id      string
	mu      sync.RWMutex
	values  map[string]string
	commits int
}

// NewMemorySessionStore creates an empty session scope.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		id:     uuid.NewString(),
		values: make(map[string]string),
	}
}

// ID returns a stable identifier for this session scope, useful in logs.
func (s *MemorySessionStore) ID() string {
	return s.id
}

func (s *MemorySessionStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemorySessionStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemorySessionStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

func (s *MemorySessionStore) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

func (s *MemorySessionStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return nil
}

// Commits reports how many times Commit ran.
func (s *MemorySessionStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}
