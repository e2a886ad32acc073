package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Ports for outbound adapters.
type (
	// ValuesReader fetches a rectangular range of cell values, row-major,
	// as returned by the spreadsheet API ("Sheet!A2:D").
	ValuesReader interface {
		ReadRange(ctx context.Context, rng string) ([][]any, error)
	}
)

// Layout names the sheets the ledger is read from. Ranges start at row 2;
// row 1 holds headers.
//
//	Categories:   A name
//	Transactions: A date | B description | C amount | D category
//	Budgets:      A category (blank = all) | B amount | C period | D start | E end | F warning % | G danger %
type Layout struct {
	Categories   string
	Transactions string
	Budgets      string
}

func DefaultLayout() Layout {
	return Layout{
		Categories:   "Categories",
		Transactions: "Transactions",
		Budgets:      "Budgets",
	}
}

func (l Layout) categoriesRange() string   { return l.Categories + "!A2:A" }
func (l Layout) transactionsRange() string { return l.Transactions + "!A2:D" }
func (l Layout) budgetsRange() string      { return l.Budgets + "!A2:G" }

// ForYear prefixes each sheet name with the year ("2025 Transactions") unless
// it already starts with one.
func (l Layout) ForYear(year int) Layout {
	return Layout{
		Categories:   yearPrefixedName(l.Categories, year),
		Transactions: yearPrefixedName(l.Transactions, year),
		Budgets:      yearPrefixedName(l.Budgets, year),
	}
}

func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
