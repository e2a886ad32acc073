package analytics

import (
	"context"
	"errors"
	"testing"

	"finpulse/internal/core"
)

func TestScoreHealthWithBudget(t *testing.T) {
	s := scoreHealth(dec("750"), dec("1000"), core.PeriodMonthly)

	if s.SpendingConsistency != core.Computed(100) {
		t.Errorf("consistency = %+v, want computed 100", s.SpendingConsistency)
	}
	if s.BudgetAdherence != core.Computed(25) {
		t.Errorf("adherence = %+v, want computed 25", s.BudgetAdherence)
	}
	if s.Overall != 68.25 {
		t.Errorf("overall = %v, want 68.25", s.Overall)
	}
	if !s.Breakdown.BudgetRemaining.Equal(dec("250")) {
		t.Errorf("remaining = %s", s.Breakdown.BudgetRemaining)
	}
	if len(s.Recommendations) != 1 || s.Recommendations[0] != recReviewBudget {
		t.Errorf("recommendations = %v", s.Recommendations)
	}
}

func TestScoreHealthWithoutData(t *testing.T) {
	s := scoreHealth(dec("0"), dec("0"), core.PeriodMonthly)

	if s.Overall != 45.75 {
		t.Errorf("overall = %v, want 45.75", s.Overall)
	}
	checks := []struct {
		name string
		got  core.ScoreSource
		want float64
	}{
		{"adherence", s.BudgetAdherence, 0},
		{"consistency", s.SpendingConsistency, 50},
		{"savings", s.SavingsRate, 75},
		{"balance", s.CategoryBalance, 80},
	}
	for _, c := range checks {
		if c.got.Computed || c.got.Value != c.want {
			t.Errorf("%s = %+v, want unavailable %v", c.name, c.got, c.want)
		}
	}
	if len(s.Recommendations) != 2 {
		t.Errorf("recommendations = %v, want both rules", s.Recommendations)
	}
}

func TestAdherenceZeroWhenNoBudget(t *testing.T) {
	for _, spent := range []string{"0", "10", "99999.99"} {
		if got := budgetAdherence(dec(spent), dec("0")); got.Value != 0 {
			t.Errorf("spent %s: adherence = %v, want 0", spent, got.Value)
		}
	}
}

func TestAdherenceClamped(t *testing.T) {
	if got := budgetAdherence(dec("1500"), dec("1000")); got.Value != 0 {
		t.Errorf("overspend adherence = %v, want 0", got.Value)
	}
}

func TestSpendingConsistencySteps(t *testing.T) {
	tests := []struct {
		expenses string
		want     float64
	}{
		{"0", 100},
		{"800", 100},
		{"850", 90},
		{"900", 90},
		{"1000", 80},
		{"1050", 60},
		{"1100", 60},
		{"1200", 40},
		{"1200.01", 20},
		{"5000", 20},
	}
	for _, tt := range tests {
		got := spendingConsistency(dec(tt.expenses), dec("1000"))
		if got.Value != tt.want || !got.Computed {
			t.Errorf("expenses %s: consistency = %+v, want %v", tt.expenses, got, tt.want)
		}
	}
}

func TestOverallScoreStaysInRange(t *testing.T) {
	values := []float64{-50, 0, 33.3, 100, 250}
	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				for _, d := range values {
					s := core.HealthScore{
						BudgetAdherence:     core.Computed(a),
						SpendingConsistency: core.Computed(b),
						SavingsRate:         core.Computed(c),
						CategoryBalance:     core.Computed(d),
					}
					if got := overallScore(s); got < 0 || got > 100 {
						t.Fatalf("overall(%v,%v,%v,%v) = %v", a, b, c, d, got)
					}
				}
			}
		}
	}
}

func TestCalculateUpsertsMonthlySnapshot(t *testing.T) {
	ledger := &fakeLedger{
		txs:     []core.Transaction{tx(1, "750", daysAgo(2), "rent", nil)},
		budgets: []core.Budget{{ID: 1, UserID: 1, Amount: dec("1000"), Period: core.BudgetMonthly, StartDate: core.MonthStart(fixedNow)}},
	}
	store := newFakeStore()
	scorer := NewHealthScorer(ledger, store, clock)

	s, err := scorer.Calculate(context.Background(), 1, core.PeriodMonthly)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if s.Overall != 68.25 {
		t.Errorf("overall = %v", s.Overall)
	}
	key := core.ScoreKey{UserID: 1, ScoreDate: core.MonthStart(fixedNow)}
	if _, ok := store.scores[key]; !ok {
		t.Fatalf("snapshot not stored under %+v", key)
	}

	// Recomputing the same month overwrites.
	ledger.txs = append(ledger.txs, tx(2, "250", daysAgo(1), "food", nil))
	if _, err := scorer.Calculate(context.Background(), 1, core.PeriodMonthly); err != nil {
		t.Fatal(err)
	}
	if len(store.scores) != 1 {
		t.Errorf("rows = %d, want 1", len(store.scores))
	}
	if got := store.scores[key].Breakdown.TotalExpenses; !got.Equal(dec("1000")) {
		t.Errorf("stored expenses = %s, want 1000", got)
	}
}

func TestCalculateErrors(t *testing.T) {
	t.Run("read failure", func(t *testing.T) {
		ledger := &fakeLedger{budgetErr: errBoom}
		_, err := NewHealthScorer(ledger, newFakeStore(), clock).Calculate(context.Background(), 1, core.PeriodMonthly)
		var ce *ComputationError
		if !errors.As(err, &ce) || ce.Kind != KindDataAccess || ce.Stage != StageLoadBudgets {
			t.Fatalf("err = %v", err)
		}
		if ce.UserID != 1 || ce.Period != core.PeriodMonthly {
			t.Errorf("missing context: %+v", ce)
		}
	})

	t.Run("write failure keeps the score", func(t *testing.T) {
		store := newFakeStore()
		store.scoreErr = errBoom
		s, err := NewHealthScorer(&fakeLedger{}, store, clock).Calculate(context.Background(), 1, core.PeriodMonthly)
		if !IsPersistenceOnly(err) {
			t.Fatalf("err = %v, want persistence failure", err)
		}
		if s.Overall != 45.75 {
			t.Errorf("computed score lost: %v", s.Overall)
		}
	})
}
