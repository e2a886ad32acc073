package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finpulse/internal/core"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "2006-01-02T15:04:05Z07:00"}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

// parseCategories assigns ids by first appearance, starting at 1. Blank,
// commented and duplicate names are skipped.
func parseCategories(values [][]any, userID int64) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(fmt.Sprint(row[0]))
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, core.Category{ID: int64(len(out) + 1), UserID: userID, Name: name})
	}
	return out
}

func categoryIndex(cats []core.Category) map[string]int64 {
	idx := make(map[string]int64, len(cats))
	for _, c := range cats {
		idx[strings.ToLower(c.Name)] = c.ID
	}
	return idx
}

// parseTransactions turns rows into transactions. The id is the sheet row
// number. Rows that cannot be parsed are returned as skipped, not as an
// error, so one bad cell does not hide the whole ledger.
func parseTransactions(values [][]any, userID int64, cats map[string]int64) (txs []core.Transaction, skipped []int) {
	for i, raw := range values {
		row := toStrings(raw)
		rowNum := i + 2
		if strings.Join(row, "") == "" {
			continue
		}
		date, err := parseDate(safeGet(row, 0))
		if err != nil {
			skipped = append(skipped, rowNum)
			continue
		}
		amount, err := core.ParseAmount(safeGet(row, 2))
		if err != nil {
			skipped = append(skipped, rowNum)
			continue
		}
		t := core.Transaction{
			ID:          int64(rowNum),
			UserID:      userID,
			Amount:      amount,
			Date:        date,
			Description: safeGet(row, 1),
		}
		if id, ok := cats[strings.ToLower(safeGet(row, 3))]; ok {
			t.CategoryID = core.Int64Ptr(id)
		}
		if t.Validate() != nil {
			skipped = append(skipped, rowNum)
			continue
		}
		txs = append(txs, t)
	}
	return txs, skipped
}

func parsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseBudgets(values [][]any, userID int64, cats map[string]int64) (budgets []core.Budget, skipped []int) {
	for i, raw := range values {
		row := toStrings(raw)
		rowNum := i + 2
		if strings.Join(row, "") == "" {
			continue
		}
		amount, err := core.ParseAmount(safeGet(row, 1))
		if err != nil {
			skipped = append(skipped, rowNum)
			continue
		}
		start, err := parseDate(safeGet(row, 3))
		if err != nil {
			skipped = append(skipped, rowNum)
			continue
		}
		b := core.Budget{
			ID:        int64(rowNum),
			UserID:    userID,
			Amount:    amount,
			Period:    core.BudgetPeriod(strings.ToLower(safeGet(row, 2))),
			StartDate: start,
			AlertThresholds: core.AlertThresholds{
				Warning: parsePercent(safeGet(row, 5)),
				Danger:  parsePercent(safeGet(row, 6)),
			},
		}
		if name := safeGet(row, 0); name != "" {
			id, ok := cats[strings.ToLower(name)]
			if !ok {
				skipped = append(skipped, rowNum)
				continue
			}
			b.CategoryID = core.Int64Ptr(id)
		}
		if end := safeGet(row, 4); end != "" {
			if b.EndDate, err = parseDate(end); err != nil {
				skipped = append(skipped, rowNum)
				continue
			}
		}
		b.AlertThresholds = b.Thresholds()
		if b.Validate() != nil {
			skipped = append(skipped, rowNum)
			continue
		}
		budgets = append(budgets, b)
	}
	return budgets, skipped
}
