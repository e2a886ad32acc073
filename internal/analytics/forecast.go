package analytics

import (
	"context"
	"sort"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

const (
	ForecastMethodNone          = "none"
	ForecastMethodAverage       = "average"
	ForecastMethodMovingAverage = "moving_average_growth"

	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"

	movingAverageWindow = 3
	trendBandPct        = 5
)

// NextMonthForecast is the projected spend for the coming month. The growth
// factor is a fixed heuristic, not a fitted trend.
type NextMonthForecast struct {
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	MonthsUsed int             `json:"months_used"`
}

// SpendingTrend compares the oldest and newest months of history.
type SpendingTrend struct {
	Direction  string          `json:"direction"`
	Percentage float64         `json:"percentage"`
	FirstMonth decimal.Decimal `json:"first_month"`
	LastMonth  decimal.Decimal `json:"last_month"`
}

// CategoryForecasts is not implemented yet; Available is always false so
// callers can tell it apart from "no spending".
type CategoryForecasts struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
}

type ForecastBundle struct {
	History           []core.MonthTotal `json:"monthly_history"`
	NextMonth         NextMonthForecast `json:"next_month"`
	Trend             SpendingTrend     `json:"trend"`
	CategoryForecasts CategoryForecasts `json:"category_forecasts"`
}

// Forecaster projects next-month spending from monthly totals.
type Forecaster struct {
	ledger Ledger
	tuning Tuning
	now    func() time.Time
}

func NewForecaster(ledger Ledger, tuning Tuning, now func() time.Time) *Forecaster {
	if now == nil {
		now = time.Now
	}
	return &Forecaster{ledger: ledger, tuning: tuning.withDefaults(), now: now}
}

func (f *Forecaster) Forecast(ctx context.Context, userID int64, period core.Period) (ForecastBundle, error) {
	now := f.now()
	from := core.MonthStart(now).AddDate(0, -(f.tuning.ForecastHistoryMonths - 1), 0)
	txs, err := f.ledger.ListTransactions(ctx, userID, from)
	if err != nil {
		return ForecastBundle{}, dataAccessError(userID, period, StageLoadTransactions, err)
	}
	return forecastFromHistory(monthlyTotals(txs), f.tuning), nil
}

// monthlyTotals returns the months that have activity, oldest first.
func monthlyTotals(txs []core.Transaction) []core.MonthTotal {
	byMonth := make(map[[2]int]decimal.Decimal)
	for _, t := range txs {
		k := [2]int{t.Date.Year(), int(t.Date.Month())}
		byMonth[k] = byMonth[k].Add(t.Amount)
	}
	out := make([]core.MonthTotal, 0, len(byMonth))
	for k, total := range byMonth {
		out = append(out, core.MonthTotal{Year: k[0], Month: k[1], Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

func forecastFromHistory(history []core.MonthTotal, tuning Tuning) ForecastBundle {
	return ForecastBundle{
		History:   history,
		NextMonth: nextMonth(history, tuning),
		Trend:     spendingTrend(history),
		CategoryForecasts: CategoryForecasts{
			Available: false,
			Reason:    "category-level forecasting is not implemented",
		},
	}
}

func nextMonth(history []core.MonthTotal, tuning Tuning) NextMonthForecast {
	if len(history) == 0 {
		return NextMonthForecast{Amount: decimal.Zero, Method: ForecastMethodNone}
	}
	totals := make([]decimal.Decimal, len(history))
	for i, m := range history {
		totals[i] = m.Total
	}
	if len(totals) < movingAverageWindow {
		return NextMonthForecast{
			Amount:     meanDecimal(totals).Round(2),
			Method:     ForecastMethodAverage,
			MonthsUsed: len(totals),
		}
	}
	recent := totals[len(totals)-movingAverageWindow:]
	return NextMonthForecast{
		Amount:     meanDecimal(recent).Mul(tuning.growth()).Round(2),
		Method:     ForecastMethodMovingAverage,
		MonthsUsed: movingAverageWindow,
	}
}

func spendingTrend(history []core.MonthTotal) SpendingTrend {
	if len(history) < 2 {
		return SpendingTrend{Direction: TrendInsufficientData}
	}
	first, last := history[0].Total, history[len(history)-1].Total
	t := SpendingTrend{FirstMonth: first, LastMonth: last}
	if !first.IsPositive() {
		// No baseline to compute a percentage against.
		t.Direction = TrendStable
		if last.IsPositive() {
			t.Direction = TrendIncreasing
		}
		return t
	}
	t.Percentage = core.Round2(deviationPct(last, first))
	switch {
	case t.Percentage > trendBandPct:
		t.Direction = TrendIncreasing
	case t.Percentage < -trendBandPct:
		t.Direction = TrendDecreasing
	default:
		t.Direction = TrendStable
	}
	return t
}
