package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps envelopes in a mutex-guarded map. Nothing survives a
// restart; it exists for tests and for running without a cache directory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if !entry.Valid(s.now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	return entry.Data, nil
}

func (s *MemoryStore) GetStale(_ context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	clone := make([]byte, len(data))
	copy(clone, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = Entry{Data: clone, StoredAt: s.now(), TTL: ttl}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, ns Keyspace) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, ns.Prefix()) {
			delete(s.entries, key)
			removed++
		}
	}

	return removed, nil
}

func (s *MemoryStore) Stats(_ context.Context, ns Keyspace) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Keys: []string{}}
	for key := range s.entries {
		if strings.HasPrefix(key, ns.Prefix()) {
			stats.Keys = append(stats.Keys, key)
		}
	}
	sort.Strings(stats.Keys)
	stats.Count = len(stats.Keys)

	return stats, nil
}

func (s *MemoryStore) Close() error { return nil }
