package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"finpulse/internal/core"
)

func months(totals ...string) []core.MonthTotal {
	out := make([]core.MonthTotal, len(totals))
	for i, s := range totals {
		out[i] = core.MonthTotal{Year: 2025, Month: i + 1, Total: dec(s)}
	}
	return out
}

func TestNextMonthForecast(t *testing.T) {
	tests := []struct {
		name       string
		history    []core.MonthTotal
		wantAmount string
		wantMethod string
	}{
		{"no history", nil, "0", ForecastMethodNone},
		{"one month", months("120"), "120", ForecastMethodAverage},
		{"two months", months("100", "200"), "150", ForecastMethodAverage},
		{"three months", months("100", "200", "300"), "204", ForecastMethodMovingAverage},
		{"uses the last three", months("1000", "100", "200", "300"), "204", ForecastMethodMovingAverage},
		{"rounds to cents", months("10", "10", "10.01"), "10.2", ForecastMethodMovingAverage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextMonth(tt.history, DefaultTuning())
			if !got.Amount.Equal(dec(tt.wantAmount)) || got.Method != tt.wantMethod {
				t.Errorf("got %s (%s), want %s (%s)", got.Amount, got.Method, tt.wantAmount, tt.wantMethod)
			}
		})
	}
}

func TestSpendingTrend(t *testing.T) {
	tests := []struct {
		name    string
		history []core.MonthTotal
		want    string
		pct     float64
	}{
		{"empty", nil, TrendInsufficientData, 0},
		{"one month", months("100"), TrendInsufficientData, 0},
		{"increasing", months("100", "150", "200"), TrendIncreasing, 100},
		{"decreasing", months("200", "100"), TrendDecreasing, -50},
		{"within band", months("100", "500", "105"), TrendStable, 5},
		{"zero baseline", months("0", "0"), TrendStable, 0},
		{"from zero", months("0", "40"), TrendIncreasing, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spendingTrend(tt.history)
			if got.Direction != tt.want || got.Percentage != tt.pct {
				t.Errorf("got %+v, want %s %v", got, tt.want, tt.pct)
			}
		})
	}
}

func TestForecastFromLedger(t *testing.T) {
	ledger := &fakeLedger{txs: []core.Transaction{
		tx(1, "100", time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC), "a", nil),
		tx(2, "150", time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC), "b", nil),
		tx(3, "50", time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC), "c", nil),
		tx(4, "300", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), "d", nil),
		// Outside the twelve month window.
		tx(5, "9999", time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC), "old", nil),
	}}
	f := NewForecaster(ledger, DefaultTuning(), clock)

	got, err := f.Forecast(context.Background(), 1, core.PeriodMonthly)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(got.History) != 3 {
		t.Fatalf("history = %+v, want 3 months", got.History)
	}
	if got.History[0].Label() != "2025-08" || !got.History[1].Total.Equal(dec("200")) {
		t.Errorf("history = %+v", got.History)
	}
	if !got.NextMonth.Amount.Equal(dec("204")) {
		t.Errorf("forecast = %s, want 204", got.NextMonth.Amount)
	}
	if got.CategoryForecasts.Available {
		t.Error("category forecasts must be reported as unavailable")
	}
}

func TestForecastReadFailure(t *testing.T) {
	_, err := NewForecaster(&fakeLedger{txErr: errBoom}, DefaultTuning(), clock).Forecast(context.Background(), 1, core.PeriodMonthly)
	if !errors.Is(err, ErrDataAccess) || !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
}
