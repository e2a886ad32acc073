// Package sheets reads a single user's ledger from a spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/log"

	"github.com/shopspring/decimal"
)

type snapshot struct {
	categories []core.Category
	txs        []core.Transaction
	budgets    []core.Budget
}

// Ledger is a read-only analytics.Ledger over a spreadsheet. All rows belong
// to one configured user; other users see an empty ledger. The parsed sheet
// is kept for cacheValidDuration to bound API calls.
type Ledger struct {
	reader ValuesReader
	layout Layout
	userID int64
	logger *log.Logger
	now    func() time.Time

	mu                 sync.Mutex
	cached             *snapshot
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

func NewLedger(reader ValuesReader, layout Layout, userID int64, ttl time.Duration, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Ledger{
		reader:             reader,
		layout:             layout,
		userID:             userID,
		logger:             logger.WithComponent(log.ComponentSheets),
		now:                time.Now,
		cacheValidDuration: ttl,
	}
}

// Invalidate forces the next read to fetch the sheet again.
func (l *Ledger) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
	l.cacheExpiresAt = time.Time{}
}

func (l *Ledger) load(ctx context.Context) (*snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != nil && l.now().Before(l.cacheExpiresAt) {
		return l.cached, nil
	}

	catRows, err := l.reader.ReadRange(ctx, l.layout.categoriesRange())
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	txRows, err := l.reader.ReadRange(ctx, l.layout.transactionsRange())
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	budgetRows, err := l.reader.ReadRange(ctx, l.layout.budgetsRange())
	if err != nil {
		return nil, fmt.Errorf("read budgets: %w", err)
	}

	cats := parseCategories(catRows, l.userID)
	idx := categoryIndex(cats)
	txs, skippedTx := parseTransactions(txRows, l.userID, idx)
	budgets, skippedBudgets := parseBudgets(budgetRows, l.userID, idx)
	if len(skippedTx)+len(skippedBudgets) > 0 {
		l.logger.WarnContext(ctx, "Skipped unparsable sheet rows",
			"transaction_rows", skippedTx, "budget_rows", skippedBudgets)
	}

	l.cached = &snapshot{categories: cats, txs: txs, budgets: budgets}
	l.cacheExpiresAt = l.now().Add(l.cacheValidDuration)
	return l.cached, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, userID int64, from time.Time) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0)
	if userID != l.userID {
		return out, nil
	}
	snap, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range snap.txs {
		if !t.Date.Before(from) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *Ledger) ListBudgets(ctx context.Context, userID int64, startFrom time.Time) ([]core.Budget, error) {
	out := make([]core.Budget, 0)
	if userID != l.userID {
		return out, nil
	}
	snap, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range snap.budgets {
		if !b.StartDate.Before(startFrom) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (l *Ledger) GetCategory(ctx context.Context, categoryID int64) (core.Category, bool, error) {
	snap, err := l.load(ctx)
	if err != nil {
		return core.Category{}, false, err
	}
	for _, c := range snap.categories {
		if c.ID == categoryID {
			return c, true, nil
		}
	}
	return core.Category{}, false, nil
}

func (l *Ledger) SumTransactions(ctx context.Context, userID int64, categoryID *int64, from, to time.Time) (decimal.Decimal, error) {
	if userID != l.userID {
		return decimal.Zero, nil
	}
	snap, err := l.load(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range snap.txs {
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		if categoryID != nil && (t.CategoryID == nil || *t.CategoryID != *categoryID) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total, nil
}
