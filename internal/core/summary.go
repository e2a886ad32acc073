package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID *int64          `json:"category_id,omitempty"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
}

// MonthTotal is the spending total for one calendar month.
type MonthTotal struct {
	Year  int             `json:"year"`
	Month int             `json:"month"` // 1-12
	Total decimal.Decimal `json:"total"`
}

// Label returns the month as "YYYY-MM".
func (m MonthTotal) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Start returns midnight of the first day of the month in UTC.
func (m MonthTotal) Start() time.Time {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
}
