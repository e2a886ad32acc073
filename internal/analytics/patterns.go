package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

const (
	descriptionPrefixLen = 10
	unknownCategory      = "Unknown"
)

// DetectedPatterns is the output of one detection pass, split by kind.
type DetectedPatterns struct {
	Recurring      []core.SpendingPattern `json:"recurring"`
	Seasonal       []core.SpendingPattern `json:"seasonal"`
	CategorySpikes []core.SpendingPattern `json:"category_spikes"`
	Anomalies      []core.SpendingPattern `json:"anomalies"`
}

// All returns every observation in a stable order.
func (d DetectedPatterns) All() []core.SpendingPattern {
	out := make([]core.SpendingPattern, 0, len(d.Recurring)+len(d.Seasonal)+len(d.CategorySpikes)+len(d.Anomalies))
	out = append(out, d.Recurring...)
	out = append(out, d.Seasonal...)
	out = append(out, d.CategorySpikes...)
	out = append(out, d.Anomalies...)
	return out
}

// Detector scans a user's transactions for recurring charges, seasonal
// spikes, category spikes and statistical anomalies.
type Detector struct {
	ledger Ledger
	store  PatternStore
	tuning Tuning
	now    func() time.Time
}

func NewDetector(ledger Ledger, store PatternStore, tuning Tuning, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{ledger: ledger, store: store, tuning: tuning.withDefaults(), now: now}
}

// Detect runs all detectors over the period window and upserts every
// observation. Upserts are independent: a failed write does not stop the
// others, and failures come back as a persistence ComputationError next to a
// complete result.
func (d *Detector) Detect(ctx context.Context, userID int64, period core.Period) (DetectedPatterns, error) {
	now := d.now()
	txs, err := d.ledger.ListTransactions(ctx, userID, period.Start(now))
	if err != nil {
		return DetectedPatterns{}, dataAccessError(userID, period, StageLoadTransactions, err)
	}

	names, err := resolveCategoryNames(ctx, d.ledger, txs)
	if err != nil {
		return DetectedPatterns{}, dataAccessError(userID, period, StageLookupCategory, err)
	}

	result := detectPatterns(userID, txs, names, d.tuning, now)

	if d.store == nil {
		return result, nil
	}
	var errs []error
	for _, p := range result.All() {
		if err := d.store.UpsertPattern(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", p.Type, p.Name, err))
		}
	}
	if len(errs) > 0 {
		return result, persistenceError(userID, period, StageSavePatterns, errors.Join(errs...))
	}
	return result, nil
}

func detectPatterns(userID int64, txs []core.Transaction, names map[int64]string, tuning Tuning, now time.Time) DetectedPatterns {
	sorted := sortedTransactions(txs)
	stamp := func(ps []core.SpendingPattern) []core.SpendingPattern {
		for i := range ps {
			ps[i].UserID = userID
			ps[i].FirstDetected = now
			ps[i].LastDetected = now
			ps[i].IsActive = true
		}
		return ps
	}
	return DetectedPatterns{
		Recurring:      stamp(detectRecurring(sorted, tuning)),
		Seasonal:       stamp(detectSeasonal(sorted, tuning)),
		CategorySpikes: stamp(detectCategorySpikes(sorted, names, tuning)),
		Anomalies:      stamp(detectAnomalies(sorted, tuning)),
	}
}

type recurringKey struct {
	amount int64
	prefix string
}

// detectRecurring groups by rounded amount and description prefix. Only the
// monthly cadence is recognized.
func detectRecurring(txs []core.Transaction, tuning Tuning) []core.SpendingPattern {
	groups := make(map[recurringKey][]core.Transaction)
	for _, t := range txs {
		k := recurringKey{amount: t.Amount.Round(0).IntPart(), prefix: firstRunes(t.Description, descriptionPrefixLen)}
		groups[k] = append(groups[k], t)
	}

	keys := make([]recurringKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].amount != keys[j].amount {
			return keys[i].amount < keys[j].amount
		}
		return keys[i].prefix < keys[j].prefix
	})

	var out []core.SpendingPattern
	for _, k := range keys {
		group := groups[k]
		n := len(group)
		if n < tuning.RecurringMinOccurrences {
			continue
		}
		var gapTotal float64
		for i := 1; i < n; i++ {
			gapTotal += core.DaysBetween(group[i-1].Date, group[i].Date)
		}
		meanGap := gapTotal / float64(n-1)
		if meanGap < tuning.RecurringMinGapDays || meanGap > tuning.RecurringMaxGapDays {
			continue
		}

		amounts := make([]decimal.Decimal, n)
		for i, t := range group {
			amounts[i] = t.Amount
		}
		avg := meanDecimal(amounts).Round(2)
		label := strings.TrimSpace(k.prefix)
		occurrences := n
		if occurrences > 10 {
			occurrences = 10
		}

		out = append(out, core.SpendingPattern{
			Type:            core.PatternMonthlyRecurring,
			Name:            fmt.Sprintf("%s %d", label, k.amount),
			Description:     fmt.Sprintf("Recurring monthly charge of %s for %q", avg.StringFixed(2), label),
			FrequencyDays:   core.PatternMonthlyRecurring.FrequencyDays(0),
			ConfidenceScore: 85 + 1.5*float64(occurrences),
			ImpactAmount:    avg,
			Data: map[string]any{
				"description":           label,
				"amount":                avg.StringFixed(2),
				"rounded_amount":        k.amount,
				"occurrences":           n,
				"average_interval_days": core.Round2(meanGap),
				"last_date":             group[n-1].Date.Format("2006-01-02"),
			},
		})
	}
	return out
}

// detectSeasonal flags calendar months whose total exceeds the mean month.
func detectSeasonal(txs []core.Transaction, tuning Tuning) []core.SpendingPattern {
	buckets := make(map[string]decimal.Decimal)
	for _, t := range txs {
		k := t.Date.Format("01")
		buckets[k] = buckets[k].Add(t.Amount)
	}
	if len(buckets) == 0 {
		return nil
	}

	keys := make([]string, 0, len(buckets))
	sums := make([]decimal.Decimal, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sums = append(sums, buckets[k])
	}
	mean := meanDecimal(sums)
	if !mean.IsPositive() {
		return nil
	}
	threshold := mean.Mul(decimal.NewFromFloat(tuning.SeasonalFactor))

	var out []core.SpendingPattern
	for _, k := range keys {
		sum := buckets[k]
		if !sum.GreaterThan(threshold) {
			continue
		}
		dev := deviationPct(sum, mean)
		month, _ := time.Parse("01", k)
		monthName := month.Month().String()
		out = append(out, core.SpendingPattern{
			Type:            core.PatternSeasonal,
			Name:            "Seasonal spike in " + monthName,
			Description:     fmt.Sprintf("Spending in %s is %.1f%% above the monthly average", monthName, dev),
			FrequencyDays:   core.PatternSeasonal.FrequencyDays(0),
			ConfidenceScore: core.Clamp(dev, 0, 100),
			ImpactAmount:    sum,
			Data: map[string]any{
				"month":     k,
				"total":     sum.StringFixed(2),
				"average":   mean.StringFixed(2),
				"deviation": core.Round2(dev),
			},
		})
	}
	return out
}

// detectCategorySpikes flags categories whose total exceeds the mean
// category total.
func detectCategorySpikes(txs []core.Transaction, names map[int64]string, tuning Tuning) []core.SpendingPattern {
	const uncategorized = int64(0)
	totals := make(map[int64]decimal.Decimal)
	for _, t := range txs {
		id := uncategorized
		if t.CategoryID != nil {
			id = *t.CategoryID
		}
		totals[id] = totals[id].Add(t.Amount)
	}
	if len(totals) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	sums := make([]decimal.Decimal, len(ids))
	for i, id := range ids {
		sums[i] = totals[id]
	}
	mean := meanDecimal(sums)
	if !mean.IsPositive() {
		return nil
	}
	threshold := mean.Mul(decimal.NewFromFloat(tuning.SpikeFactor))

	var out []core.SpendingPattern
	for _, id := range ids {
		total := totals[id]
		if !total.GreaterThan(threshold) {
			continue
		}
		name, ok := names[id]
		if !ok || id == uncategorized {
			name = unknownCategory
		}
		// Names key the stored pattern, so unresolved categories keep their id.
		label := name
		if !ok && id != uncategorized {
			label = fmt.Sprintf("%s #%d", name, id)
		}
		dev := deviationPct(total, mean)
		data := map[string]any{
			"category":  name,
			"total":     total.StringFixed(2),
			"average":   mean.StringFixed(2),
			"deviation": core.Round2(dev),
		}
		if id != uncategorized {
			data["category_id"] = id
		}
		out = append(out, core.SpendingPattern{
			Type:            core.PatternCategorySpike,
			Name:            "Category spike: " + label,
			Description:     fmt.Sprintf("Spending on %s is %.1f%% above the category average", name, dev),
			FrequencyDays:   core.PatternCategorySpike.FrequencyDays(0),
			ConfidenceScore: core.Clamp(dev, 0, 100),
			ImpactAmount:    total,
			Data:            data,
		})
	}
	return out
}

// detectAnomalies flags transactions whose z-score exceeds the threshold.
// A window with zero variance has no anomalies.
func detectAnomalies(txs []core.Transaction, tuning Tuning) []core.SpendingPattern {
	if len(txs) < 2 {
		return nil
	}
	values := make([]float64, len(txs))
	for i, t := range txs {
		values[i] = t.Amount.InexactFloat64()
	}
	mean, stdDev := meanStdDev(values)
	if stdDev == 0 {
		return nil
	}

	var out []core.SpendingPattern
	for i, t := range txs {
		z := (values[i] - mean) / stdDev
		absZ := z
		if absZ < 0 {
			absZ = -absZ
		}
		if absZ <= tuning.AnomalyZThreshold {
			continue
		}
		day := t.Date.Format("2006-01-02")
		out = append(out, core.SpendingPattern{
			Type:            core.PatternAnomaly,
			Name:            fmt.Sprintf("Unusual transaction #%d", t.ID),
			Description:     fmt.Sprintf("%s of %s on %s is %.1f standard deviations from the mean", t.Description, t.Amount.StringFixed(2), day, absZ),
			FrequencyDays:   core.PatternAnomaly.FrequencyDays(0),
			ConfidenceScore: core.Clamp(absZ*20, 0, 100),
			ImpactAmount:    t.Amount,
			Data: map[string]any{
				"transaction_id": t.ID,
				"description":    t.Description,
				"amount":         t.Amount.StringFixed(2),
				"date":           day,
				"z_score":        core.Round2(z),
				"mean":           core.Round2(mean),
				"std_dev":        core.Round2(stdDev),
			},
		})
	}
	return out
}

// resolveCategoryNames looks up every category referenced by txs. Missing
// categories are simply absent from the result.
func resolveCategoryNames(ctx context.Context, ledger Ledger, txs []core.Transaction) (map[int64]string, error) {
	names := make(map[int64]string)
	seen := make(map[int64]bool)
	for _, t := range txs {
		if t.CategoryID == nil || seen[*t.CategoryID] {
			continue
		}
		id := *t.CategoryID
		seen[id] = true
		c, ok, err := ledger.GetCategory(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("category %d: %w", id, err)
		}
		if ok {
			names[id] = c.Name
		}
	}
	return names, nil
}
