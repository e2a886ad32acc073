package memstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

var now = time.Date(2025, 10, 19, 12, 0, 0, 0, time.UTC)

func TestNewFromFilesSeedsAndDedupes(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir, 1)
	cats, _ := s.ListCategories(context.Background(), 1)
	if len(cats) == 0 {
		t.Fatal("expected default categories when seed file is missing")
	}

	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("# header\nFood\nRent\nFood\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s = NewFromFiles(dir, 1)
	cats, _ = s.ListCategories(context.Background(), 1)
	if len(cats) != 2 || cats[0].Name != "Food" || cats[1].Name != "Rent" {
		t.Fatalf("categories = %+v", cats)
	}
}

func TestLedgerFiltersByUserAndDate(t *testing.T) {
	s := New()
	ctx := context.Background()
	food, _ := s.CreateCategory(ctx, 1, "Food")

	add := func(user int64, cat *int64, amount string, at time.Time) {
		t.Helper()
		_, err := s.CreateTransaction(ctx, core.Transaction{
			UserID: user, CategoryID: cat, Amount: decimal.RequireFromString(amount), Date: at, Description: "x",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	add(1, &food.ID, "10", now.AddDate(0, 0, -1))
	add(1, nil, "5", now.AddDate(0, 0, -3))
	add(1, nil, "100", now.AddDate(0, -3, 0))
	add(2, nil, "7", now)

	txs, _ := s.ListTransactions(ctx, 1, now.AddDate(0, 0, -7))
	if len(txs) != 2 || !txs[0].Date.Before(txs[1].Date) {
		t.Fatalf("transactions = %+v", txs)
	}

	sum, _ := s.SumTransactions(ctx, 1, nil, now.AddDate(0, 0, -7), now)
	if !sum.Equal(decimal.NewFromInt(15)) {
		t.Errorf("sum = %s", sum)
	}
	sum, _ = s.SumTransactions(ctx, 1, &food.ID, now.AddDate(0, 0, -7), now)
	if !sum.Equal(decimal.NewFromInt(10)) {
		t.Errorf("food sum = %s", sum)
	}

	if _, err := s.CreateTransaction(ctx, core.Transaction{UserID: 1, Amount: decimal.NewFromInt(-1), Date: now, Description: "x"}); err == nil {
		t.Error("negative amount accepted")
	}
}

func TestUpsertsKeepOneRowPerKey(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := now.AddDate(0, -1, 0)
	p := core.SpendingPattern{UserID: 1, Type: core.PatternAnomaly, Name: "Unusual transaction #4", ConfidenceScore: 80, IsActive: true, FirstDetected: first, LastDetected: first}
	_ = s.UpsertPattern(ctx, p)
	p.FirstDetected, p.LastDetected, p.ConfidenceScore = now, now, 90
	_ = s.UpsertPattern(ctx, p)

	got, _ := s.ListActivePatterns(ctx, 1, 70)
	if len(got) != 1 {
		t.Fatalf("patterns = %d", len(got))
	}
	if !got[0].FirstDetected.Equal(first) || got[0].ConfidenceScore != 90 {
		t.Errorf("pattern = %+v", got[0])
	}

	month := core.MonthStart(now)
	_ = s.UpsertHealthScore(ctx, core.HealthScore{UserID: 1, Overall: 40, ScoreDate: month})
	_ = s.UpsertHealthScore(ctx, core.HealthScore{UserID: 1, Overall: 60, ScoreDate: month})
	scores := s.HealthScores(1)
	if len(scores) != 1 || scores[0].Overall != 60 {
		t.Errorf("scores = %+v", scores)
	}

	_ = s.UpsertInsight(ctx, core.UserInsight{UserID: 1, Type: core.InsightTrendAnalysis, Title: "a"})
	_ = s.UpsertInsight(ctx, core.UserInsight{UserID: 1, Type: core.InsightTrendAnalysis, Title: "b"})
	if i, ok := s.Insight(1, core.InsightTrendAnalysis); !ok || i.Title != "b" {
		t.Errorf("insight = %+v, %v", i, ok)
	}
}

func TestBudgetDefaultsThresholds(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.CreateBudget(ctx, core.Budget{UserID: 1, Amount: decimal.NewFromInt(100), Period: core.BudgetMonthly, StartDate: core.MonthStart(now)}); err != nil {
		t.Fatal(err)
	}
	bs, _ := s.ListBudgets(ctx, 1, core.MonthStart(now))
	if len(bs) != 1 || bs[0].AlertThresholds != core.DefaultAlertThresholds {
		t.Errorf("budgets = %+v", bs)
	}
}
