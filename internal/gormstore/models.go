package gormstore

import (
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"uniqueIndex:idx_categories_user_name,priority:1;not null"`
	Name      string    `gorm:"uniqueIndex:idx_categories_user_name,priority:2;size:100;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type Transaction struct {
	ID          int64           `gorm:"primaryKey"`
	UserID      int64           `gorm:"index:idx_transactions_user_date,priority:1;not null"`
	CategoryID  *int64          `gorm:"index"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	OccurredAt  time.Time       `gorm:"index:idx_transactions_user_date,priority:2;not null"`
	Description string          `gorm:"size:255;not null"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
}

type Budget struct {
	ID               int64           `gorm:"primaryKey"`
	UserID           int64           `gorm:"index:idx_budgets_user_start,priority:1;not null"`
	CategoryID       *int64          `gorm:"index"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Period           string          `gorm:"size:16;not null"`
	StartDate        time.Time       `gorm:"index:idx_budgets_user_start,priority:2;not null"`
	EndDate          *time.Time
	WarningThreshold float64   `gorm:"not null"`
	DangerThreshold  float64   `gorm:"not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

type SpendingPattern struct {
	ID              int64           `gorm:"primaryKey"`
	UserID          int64           `gorm:"uniqueIndex:idx_spending_patterns_identity,priority:1;not null"`
	PatternType     string          `gorm:"uniqueIndex:idx_spending_patterns_identity,priority:2;size:32;not null"`
	Name            string          `gorm:"uniqueIndex:idx_spending_patterns_identity,priority:3;size:191;not null"`
	Description     string          `gorm:"type:text"`
	PatternData     map[string]any  `gorm:"serializer:json;type:json"`
	FrequencyDays   float64         `gorm:"not null"`
	ConfidenceScore float64         `gorm:"index;not null"`
	ImpactAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	FirstDetected   time.Time       `gorm:"not null"`
	LastDetected    time.Time       `gorm:"not null"`
	IsActive        bool            `gorm:"not null"`
}

type FinancialHealthScore struct {
	ID                          int64               `gorm:"primaryKey"`
	UserID                      int64               `gorm:"uniqueIndex:idx_health_scores_user_date,priority:1;not null"`
	ScoreDate                   time.Time           `gorm:"uniqueIndex:idx_health_scores_user_date,priority:2;type:date;not null"`
	OverallScore                float64             `gorm:"not null"`
	BudgetAdherenceScore        float64             `gorm:"not null"`
	BudgetAdherenceComputed     bool                `gorm:"not null"`
	SpendingConsistencyScore    float64             `gorm:"not null"`
	SpendingConsistencyComputed bool                `gorm:"not null"`
	SavingsRateScore            float64             `gorm:"not null"`
	SavingsRateComputed         bool                `gorm:"not null"`
	CategoryBalanceScore        float64             `gorm:"not null"`
	CategoryBalanceComputed     bool                `gorm:"not null"`
	ScoreBreakdown              core.ScoreBreakdown `gorm:"serializer:json;type:json"`
	Recommendations             []string            `gorm:"serializer:json;type:json"`
	UpdatedAt                   time.Time           `gorm:"autoUpdateTime"`
}

type UserInsight struct {
	ID              int64     `gorm:"primaryKey"`
	UserID          int64     `gorm:"uniqueIndex:idx_user_insights_type,priority:1;not null"`
	InsightType     string    `gorm:"uniqueIndex:idx_user_insights_type,priority:2;size:64;not null"`
	Title           string    `gorm:"size:255;not null"`
	Description     string    `gorm:"type:text"`
	Data            []byte    `gorm:"type:json"`
	ConfidenceScore float64   `gorm:"not null"`
	IsRead          bool      `gorm:"not null"`
	GeneratedAt     time.Time `gorm:"not null"`
}

type AnalyticsCacheEntry struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"uniqueIndex:idx_analytics_cache_key,priority:1;not null"`
	CacheKey   string    `gorm:"uniqueIndex:idx_analytics_cache_key,priority:2;size:191;not null"`
	CachedData []byte    `gorm:"type:longblob;not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`
}

func (AnalyticsCacheEntry) TableName() string {
	return "analytics_cache"
}

// allModels lists every table AutoMigrate manages.
func allModels() []any {
	return []any{
		&Category{}, &Transaction{}, &Budget{},
		&SpendingPattern{}, &FinancialHealthScore{}, &UserInsight{},
		&AnalyticsCacheEntry{},
	}
}

func transactionFromModel(m Transaction) core.Transaction {
	return core.Transaction{
		ID:          m.ID,
		UserID:      m.UserID,
		CategoryID:  m.CategoryID,
		Amount:      m.Amount,
		Date:        m.OccurredAt.UTC(),
		Description: m.Description,
	}
}

func transactionToModel(t core.Transaction) Transaction {
	return Transaction{
		UserID:      t.UserID,
		CategoryID:  t.CategoryID,
		Amount:      t.Amount.Round(2),
		OccurredAt:  t.Date.UTC(),
		Description: t.Description,
	}
}

func budgetFromModel(m Budget) core.Budget {
	b := core.Budget{
		ID:         m.ID,
		UserID:     m.UserID,
		CategoryID: m.CategoryID,
		Amount:     m.Amount,
		Period:     core.BudgetPeriod(m.Period),
		StartDate:  m.StartDate.UTC(),
		AlertThresholds: core.AlertThresholds{
			Warning: m.WarningThreshold,
			Danger:  m.DangerThreshold,
		},
	}
	if m.EndDate != nil {
		b.EndDate = m.EndDate.UTC()
	}
	return b
}

func patternToModel(p core.SpendingPattern) SpendingPattern {
	data := p.Data
	if data == nil {
		data = map[string]any{}
	}
	return SpendingPattern{
		UserID:          p.UserID,
		PatternType:     string(p.Type),
		Name:            p.Name,
		Description:     p.Description,
		PatternData:     data,
		FrequencyDays:   p.FrequencyDays,
		ConfidenceScore: p.ConfidenceScore,
		ImpactAmount:    p.ImpactAmount.Round(2),
		FirstDetected:   p.FirstDetected.UTC(),
		LastDetected:    p.LastDetected.UTC(),
		IsActive:        p.IsActive,
	}
}

func patternFromModel(m SpendingPattern) core.SpendingPattern {
	return core.SpendingPattern{
		ID:              m.ID,
		UserID:          m.UserID,
		Type:            core.PatternType(m.PatternType),
		Name:            m.Name,
		Description:     m.Description,
		Data:            m.PatternData,
		FrequencyDays:   m.FrequencyDays,
		ConfidenceScore: m.ConfidenceScore,
		ImpactAmount:    m.ImpactAmount,
		FirstDetected:   m.FirstDetected.UTC(),
		LastDetected:    m.LastDetected.UTC(),
		IsActive:        m.IsActive,
	}
}

func healthScoreToModel(s core.HealthScore) FinancialHealthScore {
	recs := s.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return FinancialHealthScore{
		UserID:                      s.UserID,
		ScoreDate:                   s.ScoreDate,
		OverallScore:                s.Overall,
		BudgetAdherenceScore:        s.BudgetAdherence.Value,
		BudgetAdherenceComputed:     s.BudgetAdherence.Computed,
		SpendingConsistencyScore:    s.SpendingConsistency.Value,
		SpendingConsistencyComputed: s.SpendingConsistency.Computed,
		SavingsRateScore:            s.SavingsRate.Value,
		SavingsRateComputed:         s.SavingsRate.Computed,
		CategoryBalanceScore:        s.CategoryBalance.Value,
		CategoryBalanceComputed:     s.CategoryBalance.Computed,
		ScoreBreakdown:              s.Breakdown,
		Recommendations:             recs,
	}
}

func insightToModel(i core.UserInsight) UserInsight {
	data := []byte(i.Data)
	if len(data) == 0 {
		data = []byte("{}")
	}
	return UserInsight{
		UserID:          i.UserID,
		InsightType:     i.Type,
		Title:           i.Title,
		Description:     i.Description,
		Data:            data,
		ConfidenceScore: i.ConfidenceScore,
		IsRead:          i.IsRead,
		GeneratedAt:     i.GeneratedAt.UTC(),
	}
}
