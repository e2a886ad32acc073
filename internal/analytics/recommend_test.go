package analytics

import (
	"testing"

	"finpulse/internal/core"
)

func TestRecommend(t *testing.T) {
	patterns := []core.SpendingPattern{
		{Type: core.PatternCategorySpike, Name: "Category spike: Travel", ImpactAmount: dec("1000"), Data: map[string]any{"category": "Travel"}},
		{Type: core.PatternMonthlyRecurring, Name: "Netflix 50", ImpactAmount: dec("50")},
		{Type: core.PatternAnomaly, Name: "Unusual transaction #4", ImpactAmount: dec("900")},
		{Type: core.PatternSeasonal, Name: "Seasonal spike in March", ImpactAmount: dec("400")},
	}

	got := Recommend(patterns)
	if len(got) != 2 {
		t.Fatalf("recommendations = %+v, want 2", got)
	}

	cut := got[0]
	if cut.Type != RecommendCostReduction || cut.Category != "Travel" {
		t.Errorf("cost reduction = %+v", cut)
	}
	if cut.PotentialSavings == nil || !cut.PotentialSavings.Equal(dec("300")) {
		t.Errorf("potential savings = %v, want 300", cut.PotentialSavings)
	}

	budget := got[1]
	if budget.Type != RecommendBudgetOptimization || budget.SuggestedAmount == nil || !budget.SuggestedAmount.Equal(dec("55")) {
		t.Errorf("budget optimization = %+v", budget)
	}
}

func TestRecommendEmpty(t *testing.T) {
	got := Recommend(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Recommend(nil) = %#v, want empty non-nil slice", got)
	}
}
