package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	BudgetWeekly  BudgetPeriod = "weekly"
	BudgetMonthly BudgetPeriod = "monthly"
	BudgetYearly  BudgetPeriod = "yearly"
	BudgetCustom  BudgetPeriod = "custom"
)

type (
	BudgetPeriod string

	// Transaction is a single dated spending row owned by the ledger.
	Transaction struct {
		ID          int64
		UserID      int64
		CategoryID  *int64
		Amount      decimal.Decimal
		Date        time.Time
		Description string
	}

	Category struct {
		ID     int64
		UserID int64
		Name   string
	}

	// AlertThresholds are utilization percentages at which a budget warns.
	AlertThresholds struct {
		Warning float64 `json:"warning"`
		Danger  float64 `json:"danger"`
	}

	// Budget is a spending limit over a date range. A nil CategoryID applies
	// to every category.
	Budget struct {
		ID              int64
		UserID          int64
		CategoryID      *int64
		Amount          decimal.Decimal
		Period          BudgetPeriod
		StartDate       time.Time
		EndDate         time.Time
		AlertThresholds AlertThresholds
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidUser      = errors.New("invalid user")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidPeriod    = errors.New("invalid budget period")
)

// DefaultAlertThresholds are used when a budget does not define its own.
var DefaultAlertThresholds = AlertThresholds{Warning: 80, Danger: 100}

func (t Transaction) Validate() error {
	if t.UserID <= 0 {
		return ErrInvalidUser
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 255 {
		return errors.New("description too long (max 255 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID <= 0 {
		return ErrInvalidUser
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if b.StartDate.IsZero() {
		return ErrInvalidDate
	}
	if !b.EndDate.IsZero() && b.EndDate.Before(b.StartDate) {
		return errors.New("end date must be after start date")
	}
	switch b.Period {
	case BudgetWeekly, BudgetMonthly, BudgetYearly, BudgetCustom:
	default:
		return ErrInvalidPeriod
	}
	return nil
}

// Thresholds returns the budget thresholds, falling back to the defaults
// when none are configured.
func (b Budget) Thresholds() AlertThresholds {
	if b.AlertThresholds.Warning <= 0 && b.AlertThresholds.Danger <= 0 {
		return DefaultAlertThresholds
	}
	return b.AlertThresholds
}

// AppliesToAll reports whether the budget covers every category.
func (b Budget) AppliesToAll() bool {
	return b.CategoryID == nil
}

// Int64Ptr is a small helper for optional identifiers.
func Int64Ptr(v int64) *int64 {
	return &v
}
