package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PatternType classifies a detected spending pattern.
type PatternType string

const (
	PatternDailyRecurring   PatternType = "daily_recurring"
	PatternWeeklyRecurring  PatternType = "weekly_recurring"
	PatternMonthlyRecurring PatternType = "monthly_recurring"
	PatternSeasonal         PatternType = "seasonal"
	PatternCategorySpike    PatternType = "category_spike"
	PatternAnomaly          PatternType = "anomaly"
)

// FrequencyDays returns the fixed cadence for recurring and seasonal types and
// fallback for spikes and anomalies, which carry no intrinsic cadence.
func (t PatternType) FrequencyDays(fallback float64) float64 {
	switch t {
	case PatternDailyRecurring:
		return 1
	case PatternWeeklyRecurring:
		return 7
	case PatternMonthlyRecurring:
		return 30
	case PatternSeasonal:
		return 365
	default:
		return fallback
	}
}

// PatternKey is the upsert identity of a SpendingPattern.
type PatternKey struct {
	UserID int64
	Type   PatternType
	Name   string
}

// SpendingPattern is a persisted pattern observation.
type SpendingPattern struct {
	ID              int64           `json:"id,omitempty"`
	UserID          int64           `json:"user_id"`
	Type            PatternType     `json:"pattern_type"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Data            map[string]any  `json:"pattern_data"`
	FrequencyDays   float64         `json:"frequency_days"`
	ConfidenceScore float64         `json:"confidence_score"`
	ImpactAmount    decimal.Decimal `json:"impact_amount"`
	FirstDetected   time.Time       `json:"first_detected"`
	LastDetected    time.Time       `json:"last_detected"`
	IsActive        bool            `json:"is_active"`
}

func (p SpendingPattern) Key() PatternKey {
	return PatternKey{UserID: p.UserID, Type: p.Type, Name: p.Name}
}

// ScoreSource is a sub-score tagged with whether it was derived from data or
// is a documented fallback for missing inputs.
type ScoreSource struct {
	Value    float64 `json:"value"`
	Computed bool    `json:"computed"`
}

// Computed wraps a score derived from ledger data.
func Computed(v float64) ScoreSource {
	return ScoreSource{Value: v, Computed: true}
}

// Unavailable wraps a default used when the inputs for a score are missing.
func Unavailable(defaultValue float64) ScoreSource {
	return ScoreSource{Value: defaultValue, Computed: false}
}

// Clamped returns the value restricted to [0,100].
func (s ScoreSource) Clamped() float64 {
	return Clamp(s.Value, 0, 100)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScoreBreakdown carries the raw totals a health score was computed from.
type ScoreBreakdown struct {
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	TotalBudget     decimal.Decimal `json:"total_budget"`
	BudgetRemaining decimal.Decimal `json:"budget_remaining"`
	Period          Period          `json:"period"`
}

// ScoreKey is the upsert identity of a HealthScore: one row per user per month.
type ScoreKey struct {
	UserID    int64
	ScoreDate time.Time
}

// HealthScore is a dated financial health snapshot.
type HealthScore struct {
	UserID              int64          `json:"user_id"`
	Overall             float64        `json:"overall_score"`
	BudgetAdherence     ScoreSource    `json:"budget_adherence_score"`
	SpendingConsistency ScoreSource    `json:"spending_consistency_score"`
	SavingsRate         ScoreSource    `json:"savings_rate_score"`
	CategoryBalance     ScoreSource    `json:"category_balance_score"`
	Breakdown           ScoreBreakdown `json:"score_breakdown"`
	Recommendations     []string       `json:"recommendations"`
	ScoreDate           time.Time      `json:"score_date"`
}

func (h HealthScore) Key() ScoreKey {
	return ScoreKey{UserID: h.UserID, ScoreDate: h.ScoreDate}
}

const InsightTrendAnalysis = "trend_analysis"

// InsightKey is the upsert identity of a UserInsight.
type InsightKey struct {
	UserID int64
	Type   string
}

// UserInsight is a persisted, human-readable analytics summary.
type UserInsight struct {
	ID              int64           `json:"id,omitempty"`
	UserID          int64           `json:"user_id"`
	Type            string          `json:"insight_type"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Data            json.RawMessage `json:"data"`
	ConfidenceScore float64         `json:"confidence_score"`
	IsRead          bool            `json:"is_read"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

func (i UserInsight) Key() InsightKey {
	return InsightKey{UserID: i.UserID, Type: i.Type}
}

// CacheKey is the identity of a cached analytics payload.
type CacheKey struct {
	UserID int64
	Key    string
}

// CacheEntry is an opaque cached payload with an absolute expiry.
type CacheEntry struct {
	UserID    int64
	Key       string
	Data      []byte
	ExpiresAt time.Time
}

func (e CacheEntry) CacheKey() CacheKey {
	return CacheKey{UserID: e.UserID, Key: e.Key}
}

// Expired reports whether the entry must be treated as a miss at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
