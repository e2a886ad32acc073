package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID:      1,
		Amount:      decimal.NewFromInt(10),
		Date:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "ok",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{UserID: 0, Amount: decimal.NewFromInt(1), Date: good.Date, Description: "a"},
		{UserID: 1, Amount: decimal.NewFromInt(1), Description: "a"},
		{UserID: 1, Amount: decimal.NewFromInt(-1), Date: good.Date, Description: "a"},
		{UserID: 1, Amount: decimal.NewFromInt(1), Date: good.Date, Description: "  "},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	good := Budget{UserID: 1, Amount: decimal.NewFromInt(100), Period: BudgetMonthly, StartDate: start, EndDate: start.AddDate(0, 1, -1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := good
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err == nil {
		t.Fatalf("expected error for zero amount")
	}

	backwards := good
	backwards.EndDate = start.AddDate(0, 0, -1)
	if err := backwards.Validate(); err == nil {
		t.Fatalf("expected error for end before start")
	}

	badPeriod := good
	badPeriod.Period = "fortnightly"
	if err := badPeriod.Validate(); err != ErrInvalidPeriod {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestBudgetThresholdsDefault(t *testing.T) {
	b := Budget{}
	if got := b.Thresholds(); got != DefaultAlertThresholds {
		t.Fatalf("expected defaults, got %+v", got)
	}
	b.AlertThresholds = AlertThresholds{Warning: 50, Danger: 90}
	if got := b.Thresholds(); got.Warning != 50 || got.Danger != 90 {
		t.Fatalf("unexpected thresholds %+v", got)
	}
}

func TestPeriodStart(t *testing.T) {
	// Wednesday 2025-05-14
	now := time.Date(2025, 5, 14, 15, 30, 0, 0, time.UTC)
	cases := []struct {
		p    Period
		want time.Time
	}{
		{PeriodWeekly, time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC)},
		{PeriodMonthly, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodQuarterly, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodYearly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Period("bogus"), time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := tc.p.Start(now); !got.Equal(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.p, got, tc.want)
		}
	}

	// Sunday belongs to the week that started the previous Monday
	sunday := time.Date(2025, 5, 18, 10, 0, 0, 0, time.UTC)
	if got := PeriodWeekly.Start(sunday); !got.Equal(time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("sunday week start = %v", got)
	}
}

func TestParsePeriod(t *testing.T) {
	cases := map[string]Period{
		"weekly":    PeriodWeekly,
		" Yearly ":  PeriodYearly,
		"quarterly": PeriodQuarterly,
		"monthly":   PeriodMonthly,
		"":          PeriodMonthly,
		"daily":     PeriodMonthly,
	}
	for in, want := range cases {
		if got := ParsePeriod(in); got != want {
			t.Errorf("ParsePeriod(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := CacheEntry{ExpiresAt: now}
	if !e.Expired(now) {
		t.Fatalf("entry expiring exactly now must be expired")
	}
	e.ExpiresAt = now.Add(time.Second)
	if e.Expired(now) {
		t.Fatalf("entry in the future must not be expired")
	}
}

func TestPatternFrequencyDays(t *testing.T) {
	cases := []struct {
		t    PatternType
		want float64
	}{
		{PatternDailyRecurring, 1},
		{PatternWeeklyRecurring, 7},
		{PatternMonthlyRecurring, 30},
		{PatternSeasonal, 365},
		{PatternCategorySpike, 0},
		{PatternAnomaly, 0},
	}
	for _, tc := range cases {
		if got := tc.t.FrequencyDays(0); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.t, got, tc.want)
		}
	}
	if got := PatternAnomaly.FrequencyDays(3); got != 3 {
		t.Errorf("fallback not applied: %v", got)
	}
}
