package analytics

import (
	"errors"
	"fmt"

	"finpulse/internal/core"
)

// Stage names the step of the pipeline that failed.
type Stage string

const (
	StageLoadTransactions Stage = "load_transactions"
	StageLoadBudgets      Stage = "load_budgets"
	StageLookupCategory   Stage = "lookup_category"
	StageSumBudgetSpend   Stage = "sum_budget_spend"
	StageLoadPatterns     Stage = "load_patterns"
	StageSavePatterns     Stage = "save_patterns"
	StageSaveHealthScore  Stage = "save_health_score"
	StageSaveInsight      Stage = "save_insight"
	StageCache            Stage = "cache"
	StageEncodeBundle     Stage = "encode_bundle"
)

// FailureKind separates "could not compute" from "computed but not saved".
type FailureKind int

const (
	KindDataAccess FailureKind = iota
	KindPersistence
)

var (
	ErrDataAccess  = errors.New("data access failure")
	ErrPersistence = errors.New("persistence failure")
)

func (k FailureKind) sentinel() error {
	if k == KindPersistence {
		return ErrPersistence
	}
	return ErrDataAccess
}

func (k FailureKind) String() string {
	if k == KindPersistence {
		return "persistence"
	}
	return "data_access"
}

// ComputationError carries enough context to log a failed analytics step.
// errors.Is matches ErrDataAccess or ErrPersistence according to Kind.
type ComputationError struct {
	UserID int64
	Period core.Period
	Stage  Stage
	Kind   FailureKind
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("analytics %s failed for user %d (period %s, %s): %v",
		e.Stage, e.UserID, e.Period, e.Kind, e.Err)
}

func (e *ComputationError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

func dataAccessError(userID int64, period core.Period, stage Stage, err error) error {
	return &ComputationError{UserID: userID, Period: period, Stage: stage, Kind: KindDataAccess, Err: err}
}

func persistenceError(userID int64, period core.Period, stage Stage, err error) error {
	return &ComputationError{UserID: userID, Period: period, Stage: stage, Kind: KindPersistence, Err: err}
}

// IsPersistenceOnly reports whether err means the result was computed but
// could not be stored. Callers may still use the returned value.
func IsPersistenceOnly(err error) bool {
	var ce *ComputationError
	return errors.As(err, &ce) && ce.Kind == KindPersistence
}
