package analytics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

// 2025-10-19 is a Sunday.
var fixedNow = time.Date(2025, time.October, 19, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func daysAgo(n int) time.Time { return fixedNow.AddDate(0, 0, -n) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(id int64, amount string, date time.Time, desc string, category *int64) core.Transaction {
	return core.Transaction{ID: id, UserID: 1, CategoryID: category, Amount: dec(amount), Date: date, Description: desc}
}

var errBoom = errors.New("boom")

type fakeLedger struct {
	mu         sync.Mutex
	txs        []core.Transaction
	budgets    []core.Budget
	categories map[int64]core.Category

	txErr       error
	budgetErr   error
	categoryErr error
	sumErr      error

	txCalls  int
	sumCalls []*int64
}

func (f *fakeLedger) ListTransactions(_ context.Context, userID int64, from time.Time) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	if f.txErr != nil {
		return nil, f.txErr
	}
	var out []core.Transaction
	for _, t := range f.txs {
		if t.UserID == userID && !t.Date.Before(from) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListBudgets(_ context.Context, userID int64, startFrom time.Time) ([]core.Budget, error) {
	if f.budgetErr != nil {
		return nil, f.budgetErr
	}
	var out []core.Budget
	for _, b := range f.budgets {
		if b.UserID == userID && !b.StartDate.Before(startFrom) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetCategory(_ context.Context, id int64) (core.Category, bool, error) {
	if f.categoryErr != nil {
		return core.Category{}, false, f.categoryErr
	}
	c, ok := f.categories[id]
	return c, ok, nil
}

func (f *fakeLedger) SumTransactions(_ context.Context, userID int64, categoryID *int64, from, to time.Time) (decimal.Decimal, error) {
	f.mu.Lock()
	f.sumCalls = append(f.sumCalls, categoryID)
	f.mu.Unlock()
	if f.sumErr != nil {
		return decimal.Zero, f.sumErr
	}
	total := decimal.Zero
	for _, t := range f.txs {
		if t.UserID != userID || t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		if categoryID != nil && (t.CategoryID == nil || *t.CategoryID != *categoryID) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total, nil
}

type fakeStore struct {
	mu       sync.Mutex
	patterns map[core.PatternKey]core.SpendingPattern
	scores   map[core.ScoreKey]core.HealthScore
	insights map[core.InsightKey]core.UserInsight

	failPattern func(core.SpendingPattern) bool
	scoreErr    error
	insightErr  error
	listErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		patterns: make(map[core.PatternKey]core.SpendingPattern),
		scores:   make(map[core.ScoreKey]core.HealthScore),
		insights: make(map[core.InsightKey]core.UserInsight),
	}
}

func (s *fakeStore) UpsertPattern(_ context.Context, p core.SpendingPattern) error {
	if s.failPattern != nil && s.failPattern(p) {
		return errBoom
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.patterns[p.Key()]; ok {
		p.FirstDetected = prev.FirstDetected
	}
	s.patterns[p.Key()] = p
	return nil
}

func (s *fakeStore) ListActivePatterns(_ context.Context, userID int64, minConfidence float64) ([]core.SpendingPattern, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.SpendingPattern
	for _, p := range s.patterns {
		if p.UserID == userID && p.IsActive && p.ConfidenceScore >= minConfidence {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) UpsertHealthScore(_ context.Context, h core.HealthScore) error {
	if s.scoreErr != nil {
		return s.scoreErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[h.Key()] = h
	return nil
}

func (s *fakeStore) UpsertInsight(_ context.Context, i core.UserInsight) error {
	if s.insightErr != nil {
		return s.insightErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights[i.Key()] = i
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[core.CacheKey]core.CacheEntry
	getErr  error
	setErr  error

	invalidated []string
}

func newFakeCache(now func() time.Time) *fakeCache {
	return &fakeCache{now: now, entries: make(map[core.CacheKey]core.CacheEntry)}
}

func (c *fakeCache) Get(_ context.Context, userID int64, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[core.CacheKey{UserID: userID, Key: key}]
	if !ok || e.Expired(c.now()) {
		return nil, false, nil
	}
	return e.Data, true, nil
}

func (c *fakeCache) Set(_ context.Context, userID int64, key string, data []byte, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[core.CacheKey{UserID: userID, Key: key}] = core.CacheEntry{
		UserID: userID, Key: key, Data: data, ExpiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID int64, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, key)
	delete(c.entries, core.CacheKey{UserID: userID, Key: key})
	return nil
}
