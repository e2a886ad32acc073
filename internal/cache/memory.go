package cache

import (
	"context"
	"fmt"
	"time"

	"finpulse/internal/core"
)

// MemoryStore keeps entries in a process-local LRU.
type MemoryStore struct {
	lru *LRUCache[core.CacheEntry]
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{lru: NewLRUCache[core.CacheEntry](maxEntries, 0)}
}

// WithClock sets the clock used to expire entries inside the LRU
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.lru.WithClock(now)
	return s
}

func memoryKey(k core.CacheKey) string {
	return fmt.Sprintf("%d:%s", k.UserID, k.Key)
}

func (s *MemoryStore) GetEntry(_ context.Context, key core.CacheKey) (core.CacheEntry, bool, error) {
	e, ok := s.lru.Get(memoryKey(key))
	return e, ok, nil
}

func (s *MemoryStore) PutEntry(_ context.Context, e core.CacheEntry) error {
	s.lru.SetUntil(memoryKey(e.CacheKey()), e, e.ExpiresAt)
	return nil
}

func (s *MemoryStore) DeleteEntry(_ context.Context, key core.CacheKey) error {
	s.lru.Delete(memoryKey(key))
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, _ time.Time) (int64, error) {
	return int64(s.lru.CleanExpired()), nil
}

func (s *MemoryStore) Len() int {
	return s.lru.Size()
}
