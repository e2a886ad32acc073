package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	// Fixed-width UTC so that TEXT comparison matches time order.
	timestampLayout = "2006-01-02T15:04:05Z"
	dateLayout      = "2006-01-02"
)

func dsn(dbPath string) string {
	return dbPath + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return core.Int64Ptr(n.Int64)
}

// SQLiteRepository is the embedded ledger and analytics store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ---- ledger reads ----

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, from time.Time) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsSince(ctx, ListTransactionsSinceParams{
		UserID: userID,
		From:   formatTime(from),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		date, err := parseTime(row.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", row.ID, err)
		}
		out = append(out, core.Transaction{
			ID:          row.ID,
			UserID:      row.UserID,
			CategoryID:  idPtr(row.CategoryID),
			Amount:      core.FromCents(row.AmountCents),
			Date:        date,
			Description: row.Description,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64, startFrom time.Time) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgetsStartingFrom(ctx, ListBudgetsStartingFromParams{
		UserID:    userID,
		StartFrom: formatTime(startFrom),
	})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		start, err := parseTime(row.StartDate)
		if err != nil {
			return nil, fmt.Errorf("budget %d: %w", row.ID, err)
		}
		var end time.Time
		if row.EndDate.Valid {
			if end, err = parseTime(row.EndDate.String); err != nil {
				return nil, fmt.Errorf("budget %d: %w", row.ID, err)
			}
		}
		out = append(out, core.Budget{
			ID:         row.ID,
			UserID:     row.UserID,
			CategoryID: idPtr(row.CategoryID),
			Amount:     core.FromCents(row.AmountCents),
			Period:     core.BudgetPeriod(row.Period),
			StartDate:  start,
			EndDate:    end,
			AlertThresholds: core.AlertThresholds{
				Warning: row.WarningThreshold,
				Danger:  row.DangerThreshold,
			},
		})
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, categoryID int64) (core.Category, bool, error) {
	row, err := r.queries.GetCategory(ctx, categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, fmt.Errorf("get category %d: %w", categoryID, err)
	}
	return core.Category{ID: row.ID, UserID: row.UserID, Name: row.Name}, true, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Category{ID: row.ID, UserID: row.UserID, Name: row.Name})
	}
	return out, nil
}

func (r *SQLiteRepository) SumTransactions(ctx context.Context, userID int64, categoryID *int64, from, to time.Time) (decimal.Decimal, error) {
	cents, err := r.queries.SumTransactions(ctx, SumTransactionsParams{
		UserID:     userID,
		From:       formatTime(from),
		To:         formatTime(to),
		CategoryID: nullID(categoryID),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	return core.FromCents(cents), nil
}

// ---- ledger writes ----

// CreateCategory returns the existing row when the name is already taken.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	row, err := r.queries.CreateCategory(ctx, CreateCategoryParams{UserID: userID, Name: name})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return core.Category{ID: row.ID, UserID: row.UserID, Name: row.Name}, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		UserID:      t.UserID,
		CategoryID:  nullID(t.CategoryID),
		AmountCents: core.ToCents(t.Amount),
		OccurredAt:  formatTime(t.Date),
		Description: t.Description,
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// ImportTransactions inserts a batch atomically. Nothing is written when any
// row fails validation.
func (r *SQLiteRepository) ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for i, t := range txs {
		_, err := q.CreateTransaction(ctx, CreateTransactionParams{
			UserID:      t.UserID,
			CategoryID:  nullID(t.CategoryID),
			AmountCents: core.ToCents(t.Amount),
			OccurredAt:  formatTime(t.Date),
			Description: t.Description,
		})
		if err != nil {
			return 0, fmt.Errorf("import row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(txs), nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	var end sql.NullString
	if !b.EndDate.IsZero() {
		end = sql.NullString{String: formatTime(b.EndDate), Valid: true}
	}
	th := b.Thresholds()
	id, err := r.queries.CreateBudget(ctx, CreateBudgetParams{
		UserID:           b.UserID,
		CategoryID:       nullID(b.CategoryID),
		AmountCents:      core.ToCents(b.Amount),
		Period:           string(b.Period),
		StartDate:        formatTime(b.StartDate),
		EndDate:          end,
		WarningThreshold: th.Warning,
		DangerThreshold:  th.Danger,
	})
	if err != nil {
		return 0, fmt.Errorf("create budget: %w", err)
	}
	return id, nil
}

// ---- analytics persistence ----

// UpsertPattern inserts or updates by (user, type, name). first_detected is
// only written on insert.
func (r *SQLiteRepository) UpsertPattern(ctx context.Context, p core.SpendingPattern) error {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return fmt.Errorf("encode pattern data: %w", err)
	}
	var active int64
	if p.IsActive {
		active = 1
	}
	err = r.queries.UpsertSpendingPattern(ctx, SpendingPattern{
		UserID:            p.UserID,
		PatternType:       string(p.Type),
		Name:              p.Name,
		Description:       p.Description,
		PatternData:       string(data),
		FrequencyDays:     p.FrequencyDays,
		ConfidenceScore:   p.ConfidenceScore,
		ImpactAmountCents: core.ToCents(p.ImpactAmount),
		FirstDetected:     formatTime(p.FirstDetected),
		LastDetected:      formatTime(p.LastDetected),
		IsActive:          active,
	})
	if err != nil {
		return fmt.Errorf("upsert pattern %q: %w", p.Name, err)
	}
	return nil
}

func (r *SQLiteRepository) ListActivePatterns(ctx context.Context, userID int64, minConfidence float64) ([]core.SpendingPattern, error) {
	rows, err := r.queries.ListActivePatterns(ctx, ListActivePatternsParams{
		UserID:        userID,
		MinConfidence: minConfidence,
	})
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	out := make([]core.SpendingPattern, 0, len(rows))
	for _, row := range rows {
		p, err := patternFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func patternFromRow(row SpendingPattern) (core.SpendingPattern, error) {
	first, err := parseTime(row.FirstDetected)
	if err != nil {
		return core.SpendingPattern{}, fmt.Errorf("pattern %d: %w", row.ID, err)
	}
	last, err := parseTime(row.LastDetected)
	if err != nil {
		return core.SpendingPattern{}, fmt.Errorf("pattern %d: %w", row.ID, err)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(row.PatternData), &data); err != nil {
		return core.SpendingPattern{}, fmt.Errorf("pattern %d data: %w", row.ID, err)
	}
	return core.SpendingPattern{
		ID:              row.ID,
		UserID:          row.UserID,
		Type:            core.PatternType(row.PatternType),
		Name:            row.Name,
		Description:     row.Description,
		Data:            data,
		FrequencyDays:   row.FrequencyDays,
		ConfidenceScore: row.ConfidenceScore,
		ImpactAmount:    core.FromCents(row.ImpactAmountCents),
		FirstDetected:   first,
		LastDetected:    last,
		IsActive:        row.IsActive != 0,
	}, nil
}

func (r *SQLiteRepository) UpsertHealthScore(ctx context.Context, s core.HealthScore) error {
	breakdown, err := json.Marshal(s.Breakdown)
	if err != nil {
		return fmt.Errorf("encode score breakdown: %w", err)
	}
	recs, err := json.Marshal(s.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	err = r.queries.UpsertHealthScore(ctx, UpsertHealthScoreParams{
		UserID:                      s.UserID,
		ScoreDate:                   s.ScoreDate.Format(dateLayout),
		OverallScore:                s.Overall,
		BudgetAdherenceScore:        s.BudgetAdherence.Value,
		BudgetAdherenceComputed:     s.BudgetAdherence.Computed,
		SpendingConsistencyScore:    s.SpendingConsistency.Value,
		SpendingConsistencyComputed: s.SpendingConsistency.Computed,
		SavingsRateScore:            s.SavingsRate.Value,
		SavingsRateComputed:         s.SavingsRate.Computed,
		CategoryBalanceScore:        s.CategoryBalance.Value,
		CategoryBalanceComputed:     s.CategoryBalance.Computed,
		ScoreBreakdown:              string(breakdown),
		Recommendations:             string(recs),
		UpdatedAt:                   formatTime(time.Now()),
	})
	if err != nil {
		return fmt.Errorf("upsert health score: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertInsight(ctx context.Context, i core.UserInsight) error {
	data := string(i.Data)
	if data == "" {
		data = "{}"
	}
	err := r.queries.UpsertInsight(ctx, UpsertInsightParams{
		UserID:          i.UserID,
		InsightType:     i.Type,
		Title:           i.Title,
		Description:     i.Description,
		Data:            data,
		ConfidenceScore: i.ConfidenceScore,
		IsRead:          i.IsRead,
		GeneratedAt:     formatTime(i.GeneratedAt),
	})
	if err != nil {
		return fmt.Errorf("upsert insight %q: %w", i.Type, err)
	}
	return nil
}

// ---- cache store ----

func (r *SQLiteRepository) GetEntry(ctx context.Context, key core.CacheKey) (core.CacheEntry, bool, error) {
	row, err := r.queries.GetCacheEntry(ctx, CacheKeyParams{UserID: key.UserID, CacheKey: key.Key})
	if errors.Is(err, sql.ErrNoRows) {
		return core.CacheEntry{}, false, nil
	}
	if err != nil {
		return core.CacheEntry{}, false, err
	}
	expires, err := parseTime(row.ExpiresAt)
	if err != nil {
		return core.CacheEntry{}, false, fmt.Errorf("cache entry expiry: %w", err)
	}
	return core.CacheEntry{UserID: row.UserID, Key: row.CacheKey, Data: row.CachedData, ExpiresAt: expires}, true, nil
}

func (r *SQLiteRepository) PutEntry(ctx context.Context, e core.CacheEntry) error {
	data := e.Data
	if data == nil {
		data = []byte{}
	}
	return r.queries.PutCacheEntry(ctx, AnalyticsCache{
		UserID:     e.UserID,
		CacheKey:   e.Key,
		CachedData: data,
		ExpiresAt:  formatTime(e.ExpiresAt),
	})
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, key core.CacheKey) error {
	return r.queries.DeleteCacheEntry(ctx, CacheKeyParams{UserID: key.UserID, CacheKey: key.Key})
}

// PurgeExpired removes rows whose expiry is at or before now.
func (r *SQLiteRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.queries.PurgeExpiredCache(ctx, formatTime(now))
}
