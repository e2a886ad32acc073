package analytics

import (
	"context"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

// Placeholder sub-scores. The ledger has no income or debt data yet, so these
// are reported as Unavailable rather than computed.
const (
	defaultSavingsRate     = 75
	defaultCategoryBalance = 80
	neutralConsistency     = 50
)

var (
	weightConsistency = decimal.RequireFromString("0.30")
	weightAdherence   = decimal.RequireFromString("0.30")
	weightSavings     = decimal.RequireFromString("0.25")
	weightBalance     = decimal.RequireFromString("0.15")
)

const (
	recReviewBudget = "Consider reviewing your budget allocation; spending is close to or above your budget."
	recTrackDaily   = "Try tracking daily expenses to keep spending consistent across the period."
)

// HealthScorer computes the composite financial health score.
type HealthScorer struct {
	ledger Ledger
	store  ScoreStore
	now    func() time.Time
}

func NewHealthScorer(ledger Ledger, store ScoreStore, now func() time.Time) *HealthScorer {
	if now == nil {
		now = time.Now
	}
	return &HealthScorer{ledger: ledger, store: store, now: now}
}

// Calculate scores the period and upserts the snapshot for the current month.
// A failed upsert returns the computed score with a persistence error.
func (h *HealthScorer) Calculate(ctx context.Context, userID int64, period core.Period) (core.HealthScore, error) {
	now := h.now()
	start := period.Start(now)

	txs, err := h.ledger.ListTransactions(ctx, userID, start)
	if err != nil {
		return core.HealthScore{}, dataAccessError(userID, period, StageLoadTransactions, err)
	}
	budgets, err := h.ledger.ListBudgets(ctx, userID, start)
	if err != nil {
		return core.HealthScore{}, dataAccessError(userID, period, StageLoadBudgets, err)
	}

	totalBudget := decimal.Zero
	for _, b := range budgets {
		totalBudget = totalBudget.Add(b.Amount)
	}

	score := scoreHealth(sumAmounts(txs), totalBudget, period)
	score.UserID = userID
	score.ScoreDate = core.MonthStart(now)

	if h.store != nil {
		if err := h.store.UpsertHealthScore(ctx, score); err != nil {
			return score, persistenceError(userID, period, StageSaveHealthScore, err)
		}
	}
	return score, nil
}

func scoreHealth(totalExpenses, totalBudget decimal.Decimal, period core.Period) core.HealthScore {
	s := core.HealthScore{
		BudgetAdherence:     budgetAdherence(totalExpenses, totalBudget),
		SpendingConsistency: spendingConsistency(totalExpenses, totalBudget),
		SavingsRate:         core.Unavailable(defaultSavingsRate),
		CategoryBalance:     core.Unavailable(defaultCategoryBalance),
		Breakdown: core.ScoreBreakdown{
			TotalExpenses:   totalExpenses,
			TotalBudget:     totalBudget,
			BudgetRemaining: totalBudget.Sub(totalExpenses),
			Period:          period,
		},
	}
	s.Overall = overallScore(s)
	s.Recommendations = healthRecommendations(s)
	return s
}

func budgetAdherence(expenses, budget decimal.Decimal) core.ScoreSource {
	if !budget.IsPositive() {
		return core.Unavailable(0)
	}
	pct := budget.Sub(expenses).Div(budget).Mul(hundred)
	return core.Computed(core.Clamp(pct.Round(2).InexactFloat64(), 0, 100))
}

var consistencySteps = []struct {
	maxRatio decimal.Decimal
	score    float64
}{
	{decimal.RequireFromString("0.8"), 100},
	{decimal.RequireFromString("0.9"), 90},
	{decimal.RequireFromString("1.0"), 80},
	{decimal.RequireFromString("1.1"), 60},
	{decimal.RequireFromString("1.2"), 40},
}

func spendingConsistency(expenses, budget decimal.Decimal) core.ScoreSource {
	if !budget.IsPositive() {
		return core.Unavailable(neutralConsistency)
	}
	ratio := expenses.Div(budget)
	for _, step := range consistencySteps {
		if ratio.LessThanOrEqual(step.maxRatio) {
			return core.Computed(step.score)
		}
	}
	return core.Computed(20)
}

// overallScore applies the weights to clamped sub-scores, so the result stays
// in [0,100].
func overallScore(s core.HealthScore) float64 {
	term := func(src core.ScoreSource, w decimal.Decimal) decimal.Decimal {
		return decimal.NewFromFloat(src.Clamped()).Mul(w)
	}
	total := term(s.SpendingConsistency, weightConsistency).
		Add(term(s.BudgetAdherence, weightAdherence)).
		Add(term(s.SavingsRate, weightSavings)).
		Add(term(s.CategoryBalance, weightBalance))
	return total.Round(2).InexactFloat64()
}

func healthRecommendations(s core.HealthScore) []string {
	recs := []string{}
	if s.BudgetAdherence.Value < 70 {
		recs = append(recs, recReviewBudget)
	}
	if s.SpendingConsistency.Value < 60 {
		recs = append(recs, recTrackDaily)
	}
	return recs
}
