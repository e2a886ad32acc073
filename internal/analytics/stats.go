package analytics

import (
	"math"
	"sort"

	"finpulse/internal/core"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func sumAmounts(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

func meanDecimal(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values))))
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// deviationPct returns (value-mean)/mean*100. mean must be positive.
func deviationPct(value, mean decimal.Decimal) float64 {
	return value.Sub(mean).Div(mean).Mul(hundred).InexactFloat64()
}

// sortedTransactions returns a copy ordered by date then ID so that the
// detectors see the same sequence regardless of how the ledger returned rows.
func sortedTransactions(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c < 0
		}
		return out[i].Description < out[j].Description
	})
	return out
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
