// Package memstore is a process-local ledger and analytics store used for
// development and tests. Data is lost on restart.
package memstore

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.RWMutex

	nextID     int64
	categories map[int64]core.Category
	txs        []core.Transaction
	budgets    []core.Budget

	patterns map[core.PatternKey]core.SpendingPattern
	scores   map[core.ScoreKey]core.HealthScore
	insights map[core.InsightKey]core.UserInsight
}

func New() *Store {
	return &Store{
		categories: make(map[int64]core.Category),
		patterns:   make(map[core.PatternKey]core.SpendingPattern),
		scores:     make(map[core.ScoreKey]core.HealthScore),
		insights:   make(map[core.InsightKey]core.UserInsight),
	}
}

// NewFromFiles seeds userID's categories from base/seed_categories.txt, one
// name per line. Blank lines and # comments are skipped.
func NewFromFiles(base string, userID int64) *Store {
	s := New()
	names := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(names) == 0 {
		names = []string{"Housing", "Groceries", "Transport"}
	}
	for _, n := range names {
		_, _ = s.CreateCategory(context.Background(), userID, n)
	}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ---- ledger ----

func (s *Store) ListTransactions(_ context.Context, userID int64, from time.Time) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, 0)
	for _, t := range s.txs {
		if t.UserID == userID && !t.Date.Before(from) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ListBudgets(_ context.Context, userID int64, startFrom time.Time) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.UserID == userID && !b.StartDate.Before(startFrom) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, categoryID int64) (core.Category, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[categoryID]
	return c, ok, nil
}

func (s *Store) ListCategories(_ context.Context, userID int64) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SumTransactions(_ context.Context, userID int64, categoryID *int64, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, t := range s.txs {
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

// ---- ledger writes ----

// CreateCategory returns the existing category when the name is taken.
func (s *Store) CreateCategory(_ context.Context, userID int64, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.UserID == userID && c.Name == name {
			return c, nil
		}
	}
	c := core.Category{ID: s.id(), UserID: userID, Name: name}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.Amount = t.Amount.Round(2)
	s.txs = append(s.txs, t)
	return t.ID, nil
}

// ImportTransactions appends the batch. Nothing is stored when any row is
// invalid.
func (s *Store) ImportTransactions(_ context.Context, txs []core.Transaction) (int, error) {
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txs {
		t.ID = s.id()
		t.Amount = t.Amount.Round(2)
		s.txs = append(s.txs, t)
	}
	return len(txs), nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	b.AlertThresholds = b.Thresholds()
	s.budgets = append(s.budgets, b)
	return b.ID, nil
}

// ---- analytics persistence ----

func (s *Store) UpsertPattern(_ context.Context, p core.SpendingPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.patterns[p.Key()]; ok {
		p.ID = old.ID
		p.FirstDetected = old.FirstDetected
	} else {
		p.ID = s.id()
	}
	s.patterns[p.Key()] = p
	return nil
}

func (s *Store) ListActivePatterns(_ context.Context, userID int64, minConfidence float64) ([]core.SpendingPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SpendingPattern, 0)
	for k, p := range s.patterns {
		if k.UserID == userID && p.IsActive && p.ConfidenceScore >= minConfidence {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConfidenceScore != out[j].ConfidenceScore {
			return out[i].ConfidenceScore > out[j].ConfidenceScore
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) UpsertHealthScore(_ context.Context, sc core.HealthScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[sc.Key()] = sc
	return nil
}

// HealthScores returns the user's stored snapshots ordered by date.
func (s *Store) HealthScores(userID int64) []core.HealthScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.HealthScore, 0)
	for k, sc := range s.scores {
		if k.UserID == userID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScoreDate.Before(out[j].ScoreDate) })
	return out
}

func (s *Store) UpsertInsight(_ context.Context, i core.UserInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.insights[i.Key()]; ok {
		i.ID = old.ID
	} else {
		i.ID = s.id()
	}
	s.insights[i.Key()] = i
	return nil
}

func (s *Store) Insight(userID int64, insightType string) (core.UserInsight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.insights[core.InsightKey{UserID: userID, Type: insightType}]
	return i, ok
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe keeps the first occurrence of each value, preserving order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
