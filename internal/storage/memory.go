package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps values in a map. A positive quota caps the total size of
// keys plus values, the way a browser caps an origin's local storage.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
	quota int
	used  int
}

var _ Store = &MemoryStore{}

func NewMemoryStore(quotaBytes int) *MemoryStore {
	if quotaBytes < 0 {
		quotaBytes = 0
	}
	return &MemoryStore{
		items: map[string]string{},
		quota: quotaBytes,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used
	if old, ok := s.items[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if s.quota > 0 && used > s.quota {
		return quotaError("memory store", used, s.quota)
	}

	s.items[key] = value
	s.used = used
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.items[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Used reports the bytes currently counted against the quota.
func (s *MemoryStore) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}
