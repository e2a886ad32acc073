package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

const (
	uncategorized          = "Uncategorized"
	allCategories          = "All categories"
	trendInsightTitle      = "Spending Trend Analysis"
	trendInsightConfidence = 80

	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"

	BudgetOK      = "ok"
	BudgetWarning = "warning"
	BudgetDanger  = "danger"
)

// Trend compares the current calendar month with the previous one.
type Trend struct {
	CurrentMonth  decimal.Decimal `json:"current_month"`
	PreviousMonth decimal.Decimal `json:"previous_month"`
	Percentage    float64         `json:"trend_percentage"`
	Direction     string          `json:"direction"`
}

// BudgetPerformance is the utilization of one budget over its own range.
type BudgetPerformance struct {
	BudgetID    int64           `json:"budget_id"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Category    string          `json:"category"`
	Budgeted    decimal.Decimal `json:"budgeted"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Utilization float64         `json:"utilization_percentage"`
	Status      string          `json:"status"`
}

// InsightBundle is the structured payload behind the trend_analysis insight.
type InsightBundle struct {
	TopCategories     []core.CategoryAmount `json:"top_categories"`
	Trend             Trend                 `json:"spending_trend"`
	BudgetPerformance []BudgetPerformance   `json:"budget_performance"`
}

// InsightGenerator derives readable summaries from transactions and budgets.
type InsightGenerator struct {
	ledger Ledger
	store  InsightStore
	tuning Tuning
	now    func() time.Time
}

func NewInsightGenerator(ledger Ledger, store InsightStore, tuning Tuning, now func() time.Time) *InsightGenerator {
	if now == nil {
		now = time.Now
	}
	return &InsightGenerator{ledger: ledger, store: store, tuning: tuning.withDefaults(), now: now}
}

// Generate builds the insight bundle and stores it as the user's single
// trend_analysis insight.
func (g *InsightGenerator) Generate(ctx context.Context, userID int64, period core.Period) (InsightBundle, error) {
	now := g.now()
	start := period.Start(now)

	txs, err := g.ledger.ListTransactions(ctx, userID, start)
	if err != nil {
		return InsightBundle{}, dataAccessError(userID, period, StageLoadTransactions, err)
	}
	names, err := resolveCategoryNames(ctx, g.ledger, txs)
	if err != nil {
		return InsightBundle{}, dataAccessError(userID, period, StageLookupCategory, err)
	}

	thisMonth := core.MonthStart(now)
	lastMonth := thisMonth.AddDate(0, -1, 0)
	recent, err := g.ledger.ListTransactions(ctx, userID, lastMonth)
	if err != nil {
		return InsightBundle{}, dataAccessError(userID, period, StageLoadTransactions, err)
	}

	budgets, err := g.ledger.ListBudgets(ctx, userID, start)
	if err != nil {
		return InsightBundle{}, dataAccessError(userID, period, StageLoadBudgets, err)
	}
	perf, err := g.budgetPerformance(ctx, userID, budgets, now)
	if err != nil {
		return InsightBundle{}, dataAccessError(userID, period, StageSumBudgetSpend, err)
	}

	bundle := InsightBundle{
		TopCategories:     topCategories(txs, names, g.tuning.TopCategories),
		Trend:             monthOverMonth(recent, thisMonth),
		BudgetPerformance: perf,
	}

	if g.store == nil {
		return bundle, nil
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return bundle, persistenceError(userID, period, StageSaveInsight, err)
	}
	insight := core.UserInsight{
		UserID:          userID,
		Type:            core.InsightTrendAnalysis,
		Title:           trendInsightTitle,
		Description:     trendDescription(bundle.Trend),
		Data:            data,
		ConfidenceScore: trendInsightConfidence,
		GeneratedAt:     now,
	}
	if err := g.store.UpsertInsight(ctx, insight); err != nil {
		return bundle, persistenceError(userID, period, StageSaveInsight, err)
	}
	return bundle, nil
}

func (g *InsightGenerator) budgetPerformance(ctx context.Context, userID int64, budgets []core.Budget, now time.Time) ([]BudgetPerformance, error) {
	out := make([]BudgetPerformance, 0, len(budgets))
	for _, b := range budgets {
		end := b.EndDate
		if end.IsZero() {
			end = now
		}
		spent, err := g.ledger.SumTransactions(ctx, userID, b.CategoryID, b.StartDate, end)
		if err != nil {
			return nil, fmt.Errorf("budget %d: %w", b.ID, err)
		}

		label := allCategories
		if b.CategoryID != nil {
			c, ok, err := g.ledger.GetCategory(ctx, *b.CategoryID)
			if err != nil {
				return nil, fmt.Errorf("budget %d category: %w", b.ID, err)
			}
			label = uncategorized
			if ok {
				label = c.Name
			}
		}

		var utilization float64
		if b.Amount.IsPositive() {
			utilization = spent.Div(b.Amount).Mul(hundred).Round(2).InexactFloat64()
		}
		out = append(out, BudgetPerformance{
			BudgetID:    b.ID,
			CategoryID:  b.CategoryID,
			Category:    label,
			Budgeted:    b.Amount,
			Spent:       spent,
			Remaining:   b.Amount.Sub(spent),
			Utilization: utilization,
			Status:      budgetStatus(utilization, b.Thresholds()),
		})
	}
	return out, nil
}

func budgetStatus(utilization float64, t core.AlertThresholds) string {
	switch {
	case t.Danger > 0 && utilization >= t.Danger:
		return BudgetDanger
	case t.Warning > 0 && utilization >= t.Warning:
		return BudgetWarning
	default:
		return BudgetOK
	}
}

func topCategories(txs []core.Transaction, names map[int64]string, limit int) []core.CategoryAmount {
	byID := make(map[int64]*core.CategoryAmount)
	var none *core.CategoryAmount
	for _, t := range txs {
		if t.CategoryID == nil {
			if none == nil {
				none = &core.CategoryAmount{Name: uncategorized}
			}
			none.Amount = none.Amount.Add(t.Amount)
			none.Count++
			continue
		}
		id := *t.CategoryID
		ca, ok := byID[id]
		if !ok {
			name, found := names[id]
			if !found {
				name = uncategorized
			}
			ca = &core.CategoryAmount{CategoryID: core.Int64Ptr(id), Name: name}
			byID[id] = ca
		}
		ca.Amount = ca.Amount.Add(t.Amount)
		ca.Count++
	}

	out := make([]core.CategoryAmount, 0, len(byID)+1)
	for _, ca := range byID {
		out = append(out, *ca)
	}
	if none != nil {
		out = append(out, *none)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// monthOverMonth splits txs (dated from the start of last month) around
// thisMonth. A change of exactly zero reports "decreasing".
func monthOverMonth(txs []core.Transaction, thisMonth time.Time) Trend {
	current, previous := decimal.Zero, decimal.Zero
	for _, t := range txs {
		if t.Date.Before(thisMonth) {
			previous = previous.Add(t.Amount)
		} else {
			current = current.Add(t.Amount)
		}
	}
	var pct float64
	if previous.IsPositive() {
		pct = deviationPct(current, previous)
	}
	direction := TrendDecreasing
	if pct > 0 {
		direction = TrendIncreasing
	}
	return Trend{
		CurrentMonth:  current,
		PreviousMonth: previous,
		Percentage:    core.Round2(pct),
		Direction:     direction,
	}
}

func trendDescription(t Trend) string {
	pct := t.Percentage
	if pct < 0 {
		pct = -pct
	}
	return fmt.Sprintf("Your spending is %s by %.1f%% compared to last month.", t.Direction, pct)
}
