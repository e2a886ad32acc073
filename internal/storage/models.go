package storage

import (
	"database/sql"
)

type Category struct {
	ID     int64
	UserID int64
	Name   string
}

type Transaction struct {
	ID          int64
	UserID      int64
	CategoryID  sql.NullInt64
	AmountCents int64
	OccurredAt  string
	Description string
}

type Budget struct {
	ID               int64
	UserID           int64
	CategoryID       sql.NullInt64
	AmountCents      int64
	Period           string
	StartDate        string
	EndDate          sql.NullString
	WarningThreshold float64
	DangerThreshold  float64
}

type SpendingPattern struct {
	ID                int64
	UserID            int64
	PatternType       string
	Name              string
	Description       string
	PatternData       string
	FrequencyDays     float64
	ConfidenceScore   float64
	ImpactAmountCents int64
	FirstDetected     string
	LastDetected      string
	IsActive          int64
}

type AnalyticsCache struct {
	UserID     int64
	CacheKey   string
	CachedData []byte
	ExpiresAt  string
}
