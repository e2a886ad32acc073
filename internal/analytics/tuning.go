package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tuning holds the heuristic constants of the engine.
type Tuning struct {
	RecurringMinOccurrences int     `toml:"recurring_min_occurrences"`
	RecurringMinGapDays     float64 `toml:"recurring_min_gap_days"`
	RecurringMaxGapDays     float64 `toml:"recurring_max_gap_days"`
	SeasonalFactor          float64 `toml:"seasonal_factor"`
	SpikeFactor             float64 `toml:"spike_factor"`
	AnomalyZThreshold       float64 `toml:"anomaly_z_threshold"`

	RecommendationMinConfidence float64 `toml:"recommendation_min_confidence"`
	TopCategories               int     `toml:"top_categories"`
	ForecastGrowth              float64 `toml:"forecast_growth"`
	ForecastHistoryMonths       int     `toml:"forecast_history_months"`

	CacheTTL       time.Duration `toml:"-"`
	ComputeTimeout time.Duration `toml:"-"`
}

// DefaultTuning returns the stock heuristics.
func DefaultTuning() Tuning {
	return Tuning{
		RecurringMinOccurrences:     3,
		RecurringMinGapDays:         25,
		RecurringMaxGapDays:         35,
		SeasonalFactor:              1.3,
		SpikeFactor:                 1.5,
		AnomalyZThreshold:           2.5,
		RecommendationMinConfidence: 80,
		TopCategories:               5,
		ForecastGrowth:              1.02,
		ForecastHistoryMonths:       12,
		CacheTTL:                    60 * time.Minute,
		ComputeTimeout:              2 * time.Minute,
	}
}

// withDefaults fills zero fields so a partially specified Tuning still works.
func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	if t.RecurringMinOccurrences <= 0 {
		t.RecurringMinOccurrences = d.RecurringMinOccurrences
	}
	if t.RecurringMinGapDays <= 0 {
		t.RecurringMinGapDays = d.RecurringMinGapDays
	}
	if t.RecurringMaxGapDays <= 0 {
		t.RecurringMaxGapDays = d.RecurringMaxGapDays
	}
	if t.SeasonalFactor <= 0 {
		t.SeasonalFactor = d.SeasonalFactor
	}
	if t.SpikeFactor <= 0 {
		t.SpikeFactor = d.SpikeFactor
	}
	if t.AnomalyZThreshold <= 0 {
		t.AnomalyZThreshold = d.AnomalyZThreshold
	}
	if t.RecommendationMinConfidence <= 0 {
		t.RecommendationMinConfidence = d.RecommendationMinConfidence
	}
	if t.TopCategories <= 0 {
		t.TopCategories = d.TopCategories
	}
	if t.ForecastGrowth <= 0 {
		t.ForecastGrowth = d.ForecastGrowth
	}
	if t.ForecastHistoryMonths <= 0 {
		t.ForecastHistoryMonths = d.ForecastHistoryMonths
	}
	if t.CacheTTL <= 0 {
		t.CacheTTL = d.CacheTTL
	}
	if t.ComputeTimeout <= 0 {
		t.ComputeTimeout = d.ComputeTimeout
	}
	return t
}

func (t Tuning) growth() decimal.Decimal {
	return decimal.NewFromFloat(t.ForecastGrowth)
}
