package analytics

import (
	"fmt"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

const (
	RecommendCostReduction      = "cost_reduction"
	RecommendBudgetOptimization = "budget_optimization"
)

var (
	savingsShare   = decimal.RequireFromString("0.3")
	budgetHeadroom = decimal.RequireFromString("1.1")
)

// Recommendation is an actionable suggestion derived from one pattern.
type Recommendation struct {
	Type             string           `json:"type"`
	Category         string           `json:"category,omitempty"`
	Message          string           `json:"message"`
	PatternName      string           `json:"pattern_name"`
	PotentialSavings *decimal.Decimal `json:"potential_savings,omitempty"`
	SuggestedAmount  *decimal.Decimal `json:"suggested_amount,omitempty"`
}

// Recommend maps patterns to recommendations. Only category spikes and
// monthly recurring charges produce one.
func Recommend(patterns []core.SpendingPattern) []Recommendation {
	recs := []Recommendation{}
	for _, p := range patterns {
		if r, ok := recommendFor(p); ok {
			recs = append(recs, r)
		}
	}
	return recs
}

func recommendFor(p core.SpendingPattern) (Recommendation, bool) {
	switch p.Type {
	case core.PatternCategorySpike:
		category, _ := p.Data["category"].(string)
		if category == "" {
			category = unknownCategory
		}
		savings := p.ImpactAmount.Mul(savingsShare).Round(2)
		return Recommendation{
			Type:             RecommendCostReduction,
			Category:         category,
			Message:          fmt.Sprintf("Spending on %s is well above your other categories. Cutting it back could save about %s.", category, savings.StringFixed(2)),
			PatternName:      p.Name,
			PotentialSavings: &savings,
		}, true
	case core.PatternMonthlyRecurring:
		suggested := p.ImpactAmount.Mul(budgetHeadroom).Round(2)
		return Recommendation{
			Type:            RecommendBudgetOptimization,
			Message:         fmt.Sprintf("%q recurs every month. Consider a dedicated budget of %s for it.", p.Name, suggested.StringFixed(2)),
			PatternName:     p.Name,
			SuggestedAmount: &suggested,
		}, true
	default:
		return Recommendation{}, false
	}
}
