package storage

import (
	"context"
	"database/sql"
)

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (user_id, name) VALUES (?, ?)
ON CONFLICT (user_id, name) DO UPDATE SET name = excluded.name
RETURNING id, user_id, name
`

type CreateCategoryParams struct {
	UserID int64
	Name   string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory, arg.UserID, arg.Name)
	var i Category
	err := row.Scan(&i.ID, &i.UserID, &i.Name)
	return i, err
}

const getCategory = `-- name: GetCategory :one
SELECT id, user_id, name FROM categories WHERE id = ?
`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategory, id)
	var i Category
	err := row.Scan(&i.ID, &i.UserID, &i.Name)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT id, user_id, name FROM categories WHERE user_id = ? ORDER BY name
`

func (q *Queries) ListCategories(ctx context.Context, userID int64) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (user_id, category_id, amount_cents, occurred_at, description)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

type CreateTransactionParams struct {
	UserID      int64
	CategoryID  sql.NullInt64
	AmountCents int64
	OccurredAt  string
	Description string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.UserID, arg.CategoryID, arg.AmountCents, arg.OccurredAt, arg.Description)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listTransactionsSince = `-- name: ListTransactionsSince :many
SELECT id, user_id, category_id, amount_cents, occurred_at, description
FROM transactions
WHERE user_id = ? AND occurred_at >= ?
ORDER BY occurred_at, id
`

type ListTransactionsSinceParams struct {
	UserID int64
	From   string
}

func (q *Queries) ListTransactionsSince(ctx context.Context, arg ListTransactionsSinceParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsSince, arg.UserID, arg.From)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(&i.ID, &i.UserID, &i.CategoryID, &i.AmountCents, &i.OccurredAt, &i.Description); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumTransactions = `-- name: SumTransactions :one
SELECT CAST(COALESCE(SUM(amount_cents), 0) AS INTEGER)
FROM transactions
WHERE user_id = ?
  AND occurred_at >= ? AND occurred_at <= ?
  AND (? IS NULL OR category_id = ?)
`

type SumTransactionsParams struct {
	UserID     int64
	From       string
	To         string
	CategoryID sql.NullInt64
}

func (q *Queries) SumTransactions(ctx context.Context, arg SumTransactionsParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, sumTransactions,
		arg.UserID, arg.From, arg.To, arg.CategoryID, arg.CategoryID)
	var total int64
	err := row.Scan(&total)
	return total, err
}

const createBudget = `-- name: CreateBudget :one
INSERT INTO budgets (user_id, category_id, amount_cents, period, start_date, end_date, warning_threshold, danger_threshold)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateBudgetParams struct {
	UserID           int64
	CategoryID       sql.NullInt64
	AmountCents      int64
	Period           string
	StartDate        string
	EndDate          sql.NullString
	WarningThreshold float64
	DangerThreshold  float64
}

func (q *Queries) CreateBudget(ctx context.Context, arg CreateBudgetParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createBudget,
		arg.UserID, arg.CategoryID, arg.AmountCents, arg.Period,
		arg.StartDate, arg.EndDate, arg.WarningThreshold, arg.DangerThreshold)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listBudgetsStartingFrom = `-- name: ListBudgetsStartingFrom :many
SELECT id, user_id, category_id, amount_cents, period, start_date, end_date, warning_threshold, danger_threshold
FROM budgets
WHERE user_id = ? AND start_date >= ?
ORDER BY start_date, id
`

type ListBudgetsStartingFromParams struct {
	UserID    int64
	StartFrom string
}

func (q *Queries) ListBudgetsStartingFrom(ctx context.Context, arg ListBudgetsStartingFromParams) ([]Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetsStartingFrom, arg.UserID, arg.StartFrom)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Budget
	for rows.Next() {
		var i Budget
		if err := rows.Scan(&i.ID, &i.UserID, &i.CategoryID, &i.AmountCents, &i.Period,
			&i.StartDate, &i.EndDate, &i.WarningThreshold, &i.DangerThreshold); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertSpendingPattern = `-- name: UpsertSpendingPattern :exec
INSERT INTO spending_patterns (
    user_id, pattern_type, name, description, pattern_data, frequency_days,
    confidence_score, impact_amount_cents, first_detected, last_detected, is_active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, pattern_type, name) DO UPDATE SET
    description = excluded.description,
    pattern_data = excluded.pattern_data,
    frequency_days = excluded.frequency_days,
    confidence_score = excluded.confidence_score,
    impact_amount_cents = excluded.impact_amount_cents,
    last_detected = excluded.last_detected,
    is_active = excluded.is_active
`

func (q *Queries) UpsertSpendingPattern(ctx context.Context, arg SpendingPattern) error {
	_, err := q.db.ExecContext(ctx, upsertSpendingPattern,
		arg.UserID, arg.PatternType, arg.Name, arg.Description, arg.PatternData, arg.FrequencyDays,
		arg.ConfidenceScore, arg.ImpactAmountCents, arg.FirstDetected, arg.LastDetected, arg.IsActive)
	return err
}

const listActivePatterns = `-- name: ListActivePatterns :many
SELECT id, user_id, pattern_type, name, description, pattern_data, frequency_days,
       confidence_score, impact_amount_cents, first_detected, last_detected, is_active
FROM spending_patterns
WHERE user_id = ? AND is_active = 1 AND confidence_score >= ?
ORDER BY confidence_score DESC, name
`

type ListActivePatternsParams struct {
	UserID        int64
	MinConfidence float64
}

func (q *Queries) ListActivePatterns(ctx context.Context, arg ListActivePatternsParams) ([]SpendingPattern, error) {
	rows, err := q.db.QueryContext(ctx, listActivePatterns, arg.UserID, arg.MinConfidence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SpendingPattern
	for rows.Next() {
		var i SpendingPattern
		if err := rows.Scan(&i.ID, &i.UserID, &i.PatternType, &i.Name, &i.Description, &i.PatternData,
			&i.FrequencyDays, &i.ConfidenceScore, &i.ImpactAmountCents, &i.FirstDetected,
			&i.LastDetected, &i.IsActive); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertHealthScore = `-- name: UpsertHealthScore :exec
INSERT INTO financial_health_scores (
    user_id, score_date, overall_score,
    budget_adherence_score, budget_adherence_computed,
    spending_consistency_score, spending_consistency_computed,
    savings_rate_score, savings_rate_computed,
    category_balance_score, category_balance_computed,
    score_breakdown, recommendations, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, score_date) DO UPDATE SET
    overall_score = excluded.overall_score,
    budget_adherence_score = excluded.budget_adherence_score,
    budget_adherence_computed = excluded.budget_adherence_computed,
    spending_consistency_score = excluded.spending_consistency_score,
    spending_consistency_computed = excluded.spending_consistency_computed,
    savings_rate_score = excluded.savings_rate_score,
    savings_rate_computed = excluded.savings_rate_computed,
    category_balance_score = excluded.category_balance_score,
    category_balance_computed = excluded.category_balance_computed,
    score_breakdown = excluded.score_breakdown,
    recommendations = excluded.recommendations,
    updated_at = excluded.updated_at
`

type UpsertHealthScoreParams struct {
	UserID                      int64
	ScoreDate                   string
	OverallScore                float64
	BudgetAdherenceScore        float64
	BudgetAdherenceComputed     bool
	SpendingConsistencyScore    float64
	SpendingConsistencyComputed bool
	SavingsRateScore            float64
	SavingsRateComputed         bool
	CategoryBalanceScore        float64
	CategoryBalanceComputed     bool
	ScoreBreakdown              string
	Recommendations             string
	UpdatedAt                   string
}

func (q *Queries) UpsertHealthScore(ctx context.Context, arg UpsertHealthScoreParams) error {
	_, err := q.db.ExecContext(ctx, upsertHealthScore,
		arg.UserID, arg.ScoreDate, arg.OverallScore,
		arg.BudgetAdherenceScore, arg.BudgetAdherenceComputed,
		arg.SpendingConsistencyScore, arg.SpendingConsistencyComputed,
		arg.SavingsRateScore, arg.SavingsRateComputed,
		arg.CategoryBalanceScore, arg.CategoryBalanceComputed,
		arg.ScoreBreakdown, arg.Recommendations, arg.UpdatedAt)
	return err
}

const countHealthScores = `-- name: CountHealthScores :one
SELECT COUNT(*) FROM financial_health_scores WHERE user_id = ?
`

func (q *Queries) CountHealthScores(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countHealthScores, userID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const upsertInsight = `-- name: UpsertInsight :exec
INSERT INTO user_insights (user_id, insight_type, title, description, data, confidence_score, is_read, generated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, insight_type) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    data = excluded.data,
    confidence_score = excluded.confidence_score,
    is_read = excluded.is_read,
    generated_at = excluded.generated_at
`

type UpsertInsightParams struct {
	UserID          int64
	InsightType     string
	Title           string
	Description     string
	Data            string
	ConfidenceScore float64
	IsRead          bool
	GeneratedAt     string
}

func (q *Queries) UpsertInsight(ctx context.Context, arg UpsertInsightParams) error {
	_, err := q.db.ExecContext(ctx, upsertInsight,
		arg.UserID, arg.InsightType, arg.Title, arg.Description, arg.Data,
		arg.ConfidenceScore, arg.IsRead, arg.GeneratedAt)
	return err
}

const getCacheEntry = `-- name: GetCacheEntry :one
SELECT user_id, cache_key, cached_data, expires_at
FROM analytics_cache
WHERE user_id = ? AND cache_key = ?
`

type CacheKeyParams struct {
	UserID   int64
	CacheKey string
}

func (q *Queries) GetCacheEntry(ctx context.Context, arg CacheKeyParams) (AnalyticsCache, error) {
	row := q.db.QueryRowContext(ctx, getCacheEntry, arg.UserID, arg.CacheKey)
	var i AnalyticsCache
	err := row.Scan(&i.UserID, &i.CacheKey, &i.CachedData, &i.ExpiresAt)
	return i, err
}

const putCacheEntry = `-- name: PutCacheEntry :exec
INSERT INTO analytics_cache (user_id, cache_key, cached_data, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, cache_key) DO UPDATE SET
    cached_data = excluded.cached_data,
    expires_at = excluded.expires_at
`

func (q *Queries) PutCacheEntry(ctx context.Context, arg AnalyticsCache) error {
	_, err := q.db.ExecContext(ctx, putCacheEntry, arg.UserID, arg.CacheKey, arg.CachedData, arg.ExpiresAt)
	return err
}

const deleteCacheEntry = `-- name: DeleteCacheEntry :exec
DELETE FROM analytics_cache WHERE user_id = ? AND cache_key = ?
`

func (q *Queries) DeleteCacheEntry(ctx context.Context, arg CacheKeyParams) error {
	_, err := q.db.ExecContext(ctx, deleteCacheEntry, arg.UserID, arg.CacheKey)
	return err
}

const purgeExpiredCache = `-- name: PurgeExpiredCache :execrows
DELETE FROM analytics_cache WHERE expires_at <= ?
`

func (q *Queries) PurgeExpiredCache(ctx context.Context, now string) (int64, error) {
	result, err := q.db.ExecContext(ctx, purgeExpiredCache, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
