package analytics

import (
	"context"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

// Ports consumed by the engine.
type (
	// Ledger is the read-only view over transactions, budgets and categories.
	Ledger interface {
		// ListTransactions returns the user's transactions dated on or after from.
		ListTransactions(ctx context.Context, userID int64, from time.Time) ([]core.Transaction, error)
		// ListBudgets returns the user's budgets starting on or after startFrom.
		ListBudgets(ctx context.Context, userID int64, startFrom time.Time) ([]core.Budget, error)
		// GetCategory looks up a category. ok is false when it does not exist.
		GetCategory(ctx context.Context, categoryID int64) (c core.Category, ok bool, err error)
		// SumTransactions totals the user's spending in [from, to]. A nil
		// categoryID sums every category.
		SumTransactions(ctx context.Context, userID int64, categoryID *int64, from, to time.Time) (decimal.Decimal, error)
	}

	PatternStore interface {
		UpsertPattern(ctx context.Context, p core.SpendingPattern) error
		ListActivePatterns(ctx context.Context, userID int64, minConfidence float64) ([]core.SpendingPattern, error)
	}

	ScoreStore interface {
		UpsertHealthScore(ctx context.Context, s core.HealthScore) error
	}

	InsightStore interface {
		UpsertInsight(ctx context.Context, i core.UserInsight) error
	}

	// ResultCache memoizes serialized bundles per user and key.
	ResultCache interface {
		Get(ctx context.Context, userID int64, key string) ([]byte, bool, error)
		Set(ctx context.Context, userID int64, key string, data []byte, ttl time.Duration) error
		Invalidate(ctx context.Context, userID int64, key string) error
	}

	// Store groups the persistence the engine writes to.
	Store interface {
		PatternStore
		ScoreStore
		InsightStore
	}
)
