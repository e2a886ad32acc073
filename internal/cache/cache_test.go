package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/log"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// mapStore never expires anything on its own.
type mapStore struct {
	entries map[core.CacheKey]core.CacheEntry
	err     error
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[core.CacheKey]core.CacheEntry)}
}

func (s *mapStore) GetEntry(_ context.Context, k core.CacheKey) (core.CacheEntry, bool, error) {
	if s.err != nil {
		return core.CacheEntry{}, false, s.err
	}
	e, ok := s.entries[k]
	return e, ok, nil
}

func (s *mapStore) PutEntry(_ context.Context, e core.CacheEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries[e.CacheKey()] = e
	return nil
}

func (s *mapStore) DeleteEntry(_ context.Context, k core.CacheKey) error {
	delete(s.entries, k)
	return nil
}

func TestResultCacheTTL(t *testing.T) {
	stores := map[string]func(*fakeClock) Store{
		"map":    func(*fakeClock) Store { return newMapStore() },
		"memory": func(c *fakeClock) Store { return NewMemoryStore(10).WithClock(c.Now) },
		"redis":  func(c *fakeClock) Store { return NewRedisStore(newFakeRedis()).WithClock(c.Now) },
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			clk := &fakeClock{t: time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)}
			c := NewResultCache(mk(clk), clk.Now)
			ctx := context.Background()
			payload := []byte(`{"overall_score":45.75}`)

			if err := c.Set(ctx, 1, "user_analytics_1_monthly", payload, time.Hour); err != nil {
				t.Fatalf("Set: %v", err)
			}

			clk.Advance(59 * time.Minute)
			got, ok, err := c.Get(ctx, 1, "user_analytics_1_monthly")
			if err != nil || !ok || string(got) != string(payload) {
				t.Fatalf("Get within TTL = %q, %v, %v", got, ok, err)
			}

			if _, ok, _ := c.Get(ctx, 2, "user_analytics_1_monthly"); ok {
				t.Error("entries must be scoped by user")
			}

			clk.Advance(time.Minute)
			if _, ok, _ := c.Get(ctx, 1, "user_analytics_1_monthly"); ok {
				t.Error("entry at its expiry instant must be a miss")
			}
		})
	}
}

func TestResultCacheOverwriteResetsExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)}
	store := newMapStore()
	c := NewResultCache(store, clk.Now)
	ctx := context.Background()

	if err := c.Set(ctx, 1, "k", []byte("old"), time.Hour); err != nil {
		t.Fatal(err)
	}
	clk.Advance(50 * time.Minute)
	if err := c.Set(ctx, 1, "k", []byte("new"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(store.entries))
	}
	clk.Advance(30 * time.Minute)
	got, ok, _ := c.Get(ctx, 1, "k")
	if !ok || string(got) != "new" {
		t.Errorf("Get = %q, %v; want the overwritten value", got, ok)
	}
}

func TestResultCacheInvalidate(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := NewResultCache(NewMemoryStore(10).WithClock(clk.Now), clk.Now)
	ctx := context.Background()

	_ = c.Set(ctx, 1, "k", []byte("v"), time.Hour)
	if err := c.Invalidate(ctx, 1, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, 1, "k"); ok {
		t.Error("invalidated entry still returned")
	}
}

func TestResultCacheRejectsNonPositiveTTL(t *testing.T) {
	c := NewResultCache(newMapStore(), nil)
	if err := c.Set(context.Background(), 1, "k", nil, 0); !errors.Is(err, ErrInvalidTTL) {
		t.Errorf("err = %v, want ErrInvalidTTL", err)
	}
}

func TestResultCacheWrapsStoreErrors(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("down")
	c := NewResultCache(store, nil)
	if _, _, err := c.Get(context.Background(), 1, "k"); err == nil {
		t.Error("expected store error")
	}
}

func TestManagerCleanOnce(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)}
	mem := NewMemoryStore(10).WithClock(clk.Now)
	c := NewResultCache(mem, clk.Now)
	ctx := context.Background()

	_ = c.Set(ctx, 1, "short", []byte("a"), time.Minute)
	_ = c.Set(ctx, 1, "long", []byte("b"), time.Hour)
	clk.Advance(2 * time.Minute)

	m := NewManager(log.Discard())
	m.Register(c)
	if n := m.CleanOnce(ctx); n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if mem.Len() != 1 {
		t.Errorf("remaining = %d, want 1", mem.Len())
	}
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(log.Discard())
	m.Register(NewResultCache(NewMemoryStore(1), nil))
	m.StartCleanup(context.Background(), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Error("a should survive as most recently used")
	}
	if c.Size() != 2 {
		t.Errorf("size = %d", c.Size())
	}
}
