// Package analytics turns a user's ledger into spending patterns, a health
// score, insights, forecasts and recommendations, and memoizes the combined
// bundle in a result cache.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/log"

	"golang.org/x/sync/singleflight"
)

// Bundle is the combined analytics output for one (user, period).
type Bundle struct {
	UserID           int64            `json:"user_id"`
	Period           core.Period      `json:"period"`
	GeneratedAt      time.Time        `json:"generated_at"`
	SpendingPatterns DetectedPatterns `json:"spending_patterns"`
	FinancialHealth  core.HealthScore `json:"financial_health"`
	Insights         InsightBundle    `json:"insights"`
	Forecasts        ForecastBundle   `json:"forecasts"`
	Recommendations  []Recommendation `json:"recommendations"`
	// Warnings lists persistence failures that did not prevent computing
	// the bundle.
	Warnings []string `json:"warnings,omitempty"`
	Cached   bool     `json:"cached"`
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Tuning Tuning
	Now    func() time.Time
	Logger *log.Logger
}

// Engine is the entry point used by the HTTP layer, the CLI and the worker.
type Engine struct {
	ledger Ledger
	store  Store
	cache  ResultCache
	tuning Tuning
	now    func() time.Time
	logger *log.Logger

	detector   *Detector
	scorer     *HealthScorer
	insights   *InsightGenerator
	forecaster *Forecaster

	group singleflight.Group
}

// NewEngine wires the components. cache may be nil to disable memoization.
func NewEngine(ledger Ledger, store Store, cache ResultCache, opts Options) *Engine {
	tuning := opts.Tuning.withDefaults()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentAnalytics)

	return &Engine{
		ledger:     ledger,
		store:      store,
		cache:      cache,
		tuning:     tuning,
		now:        now,
		logger:     logger,
		detector:   NewDetector(ledger, store, tuning, now),
		scorer:     NewHealthScorer(ledger, store, now),
		insights:   NewInsightGenerator(ledger, store, tuning, now),
		forecaster: NewForecaster(ledger, tuning, now),
	}
}

// CacheKey returns the result cache key of the full bundle.
func CacheKey(userID int64, period core.Period) string {
	return fmt.Sprintf("user_analytics_%d_%s", userID, period)
}

// AllPeriods lists every period a bundle can be cached under.
var AllPeriods = []core.Period{core.PeriodWeekly, core.PeriodMonthly, core.PeriodQuarterly, core.PeriodYearly}

// GenerateUserAnalytics returns the cached bundle when fresh and computes,
// persists and caches a new one otherwise. Concurrent calls for the same
// key share one computation.
func (e *Engine) GenerateUserAnalytics(ctx context.Context, userID int64, period core.Period) (Bundle, error) {
	key := CacheKey(userID, period)
	if b, ok := e.cached(ctx, userID, key); ok {
		return b, nil
	}
	return e.computeShared(ctx, userID, period, key)
}

// RefreshAnalytics drops the cached bundle and recomputes it.
func (e *Engine) RefreshAnalytics(ctx context.Context, userID int64, period core.Period) (Bundle, error) {
	key := CacheKey(userID, period)
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, userID, key); err != nil {
			e.logger.WarnContext(ctx, "Failed to invalidate analytics cache",
				log.FieldUserID, userID, log.FieldCacheKey, key, log.FieldError, err)
		}
	}
	e.group.Forget(key)
	return e.computeShared(ctx, userID, period, key)
}

// InvalidateUser drops the cached bundles of every period for userID.
func (e *Engine) InvalidateUser(ctx context.Context, userID int64) error {
	if e.cache == nil {
		return nil
	}
	var errs []error
	for _, p := range AllPeriods {
		key := CacheKey(userID, p)
		if err := e.cache.Invalidate(ctx, userID, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return persistenceError(userID, "", StageCache, errors.Join(errs...))
	}
	return nil
}

func (e *Engine) DetectSpendingPatterns(ctx context.Context, userID int64, period core.Period) (DetectedPatterns, error) {
	return e.detector.Detect(ctx, userID, period)
}

func (e *Engine) CalculateFinancialHealth(ctx context.Context, userID int64, period core.Period) (core.HealthScore, error) {
	return e.scorer.Calculate(ctx, userID, period)
}

func (e *Engine) GenerateInsights(ctx context.Context, userID int64, period core.Period) (InsightBundle, error) {
	return e.insights.Generate(ctx, userID, period)
}

func (e *Engine) GenerateForecasts(ctx context.Context, userID int64, period core.Period) (ForecastBundle, error) {
	return e.forecaster.Forecast(ctx, userID, period)
}

// GenerateRecommendations reads the user's active patterns above the
// confidence cutoff and maps them to recommendations.
func (e *Engine) GenerateRecommendations(ctx context.Context, userID int64, period core.Period) ([]Recommendation, error) {
	if e.store == nil {
		detected, err := e.detector.Detect(ctx, userID, period)
		if err != nil {
			return nil, err
		}
		return Recommend(e.confident(detected.All())), nil
	}
	patterns, err := e.store.ListActivePatterns(ctx, userID, e.tuning.RecommendationMinConfidence)
	if err != nil {
		return nil, dataAccessError(userID, period, StageLoadPatterns, err)
	}
	return Recommend(patterns), nil
}

func (e *Engine) cached(ctx context.Context, userID int64, key string) (Bundle, bool) {
	if e.cache == nil {
		return Bundle{}, false
	}
	data, ok, err := e.cache.Get(ctx, userID, key)
	if err != nil {
		e.logger.WarnContext(ctx, "Analytics cache read failed, recomputing",
			log.FieldUserID, userID, log.FieldCacheKey, key, log.FieldError, err)
		return Bundle{}, false
	}
	if !ok {
		return Bundle{}, false
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		e.logger.WarnContext(ctx, "Discarding undecodable cached bundle",
			log.FieldUserID, userID, log.FieldCacheKey, key, log.FieldError, err)
		return Bundle{}, false
	}
	b.Cached = true
	return b, true
}

func (e *Engine) computeShared(ctx context.Context, userID int64, period core.Period, key string) (Bundle, error) {
	ch := e.group.DoChan(key, func() (any, error) {
		// Outlives the caller that started it; bounded by ComputeTimeout.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.tuning.ComputeTimeout)
		defer cancel()
		return e.compute(cctx, userID, period, key)
	})

	select {
	case <-ctx.Done():
		return Bundle{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			e.logger.DebugContext(ctx, "Shared in-flight analytics computation",
				log.FieldUserID, userID, log.FieldCacheKey, key)
		}
		if res.Err != nil {
			return Bundle{}, res.Err
		}
		return res.Val.(Bundle), nil
	}
}

// compute runs the pipeline in dependency order. Data access failures abort;
// persistence failures are recorded as warnings on the bundle.
func (e *Engine) compute(ctx context.Context, userID int64, period core.Period, key string) (Bundle, error) {
	start := time.Now()
	b := Bundle{UserID: userID, Period: period, GeneratedAt: e.now()}

	warn := func(err error) error {
		if err == nil {
			return nil
		}
		if !IsPersistenceOnly(err) {
			return err
		}
		e.logger.WarnContext(ctx, "Analytics result not persisted",
			log.FieldUserID, userID, log.FieldPeriod, period, log.FieldError, err)
		b.Warnings = append(b.Warnings, err.Error())
		return nil
	}

	var err error
	b.SpendingPatterns, err = e.detector.Detect(ctx, userID, period)
	patternsSaved := err == nil && e.store != nil
	if err := warn(err); err != nil {
		return Bundle{}, err
	}

	b.FinancialHealth, err = e.scorer.Calculate(ctx, userID, period)
	if err := warn(err); err != nil {
		return Bundle{}, err
	}

	b.Insights, err = e.insights.Generate(ctx, userID, period)
	if err := warn(err); err != nil {
		return Bundle{}, err
	}

	b.Forecasts, err = e.forecaster.Forecast(ctx, userID, period)
	if err != nil {
		return Bundle{}, err
	}

	if patternsSaved {
		b.Recommendations, err = e.GenerateRecommendations(ctx, userID, period)
		if err != nil {
			return Bundle{}, err
		}
	} else {
		// The store may not hold this run's patterns; use them directly.
		b.Recommendations = Recommend(e.confident(b.SpendingPatterns.All()))
	}

	e.cacheBundle(ctx, &b, key)

	e.logger.InfoContext(ctx, "Analytics bundle generated",
		log.FieldUserID, userID,
		log.FieldPeriod, period,
		log.FieldPatterns, len(b.SpendingPatterns.All()),
		log.FieldOverallScore, b.FinancialHealth.Overall,
		log.FieldDuration, time.Since(start).Milliseconds())
	return b, nil
}

func (e *Engine) cacheBundle(ctx context.Context, b *Bundle, key string) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to encode analytics bundle",
			log.FieldUserID, b.UserID, log.FieldCacheKey, key, log.FieldError, err)
		b.Warnings = append(b.Warnings, persistenceError(b.UserID, b.Period, StageEncodeBundle, err).Error())
		return
	}
	if err := e.cache.Set(ctx, b.UserID, key, data, e.tuning.CacheTTL); err != nil {
		e.logger.WarnContext(ctx, "Failed to cache analytics bundle",
			log.FieldUserID, b.UserID, log.FieldCacheKey, key, log.FieldError, err)
		b.Warnings = append(b.Warnings, persistenceError(b.UserID, b.Period, StageCache, err).Error())
	}
}

func (e *Engine) confident(patterns []core.SpendingPattern) []core.SpendingPattern {
	out := make([]core.SpendingPattern, 0, len(patterns))
	for _, p := range patterns {
		if p.IsActive && p.ConfidenceScore >= e.tuning.RecommendationMinConfidence {
			out = append(out, p)
		}
	}
	return out
}
