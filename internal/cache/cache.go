// Package cache memoizes serialized analytics bundles per (user, key) with an
// absolute expiry, over a pluggable store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/log"
)

var ErrInvalidTTL = errors.New("cache ttl must be positive")

// Store persists cache entries keyed by core.CacheKey. Put overwrites.
type Store interface {
	GetEntry(ctx context.Context, key core.CacheKey) (core.CacheEntry, bool, error)
	PutEntry(ctx context.Context, e core.CacheEntry) error
	DeleteEntry(ctx context.Context, key core.CacheKey) error
}

// ExpiredPurger is implemented by stores that keep expired rows around until
// something deletes them.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResultCache implements analytics.ResultCache on top of a Store.
type ResultCache struct {
	store Store
	now   func() time.Time
}

func NewResultCache(store Store, now func() time.Time) *ResultCache {
	if now == nil {
		now = time.Now
	}
	return &ResultCache{store: store, now: now}
}

// Get returns the payload stored under (userID, key). Entries with
// ExpiresAt <= now are a miss.
func (c *ResultCache) Get(ctx context.Context, userID int64, key string) ([]byte, bool, error) {
	e, ok, err := c.store.GetEntry(ctx, core.CacheKey{UserID: userID, Key: key})
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if !ok || e.Expired(c.now()) {
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set overwrites the entry and resets its expiry to now+ttl.
func (c *ResultCache) Set(ctx context.Context, userID int64, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	e := core.CacheEntry{UserID: userID, Key: key, Data: data, ExpiresAt: c.now().Add(ttl)}
	if err := c.store.PutEntry(ctx, e); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (c *ResultCache) Invalidate(ctx context.Context, userID int64, key string) error {
	if err := c.store.DeleteEntry(ctx, core.CacheKey{UserID: userID, Key: key}); err != nil {
		return fmt.Errorf("cache invalidate %q: %w", key, err)
	}
	return nil
}

// CleanExpired deletes expired rows when the store needs it.
func (c *ResultCache) CleanExpired(ctx context.Context) (int64, error) {
	p, ok := c.store.(ExpiredPurger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx, c.now())
}

// Cleaner is anything the Manager can periodically purge
type Cleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// Manager runs the janitor loop over registered caches
type Manager struct {
	caches      []Cleaner
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewManager creates a new cache manager
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		caches:      make([]Cleaner, 0),
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	go m.cleanup(ctx, interval)
}

// CleanOnce purges every registered cache and returns the total removed
func (m *Manager) CleanOnce(ctx context.Context) int64 {
	var total int64
	for _, c := range m.caches {
		n, err := c.CleanExpired(ctx)
		if err != nil {
			m.logger.WarnContext(ctx, "Cache cleanup failed", log.FieldOperation, log.OpPurge, log.FieldError, err)
			continue
		}
		total += n
	}
	return total
}

func (m *Manager) cleanup(ctx context.Context, interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanOnce(ctx); n > 0 {
				m.logger.InfoContext(ctx, "Purged expired cache entries", "removed", n)
			}
		case <-m.stopCleanup:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop gracefully stops the cleanup routine. Only call after StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
