package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	expires time.Time
	value   []byte
}

// MemoryStore is a mutex-guarded map shared by every execution slot.
type MemoryStore struct {
	now     func() time.Time
	entries map[string]memoryEntry
	mu      sync.RWMutex
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements ports.Cache. The returned slice is a copy.
func (s *MemoryStore) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[string(key)]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.mu.Lock()
		// re-check, a concurrent Set may have refreshed it
		if cur, ok := s.entries[string(key)]; ok && cur.expires.Equal(e.expires) {
			delete(s.entries, string(key))
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set implements ports.Cache.
func (s *MemoryStore) Set(_ context.Context, key, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[string(key)] = e
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included until they are read.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
