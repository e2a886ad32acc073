package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"finpulse/internal/backend"
	"finpulse/internal/config"
	"finpulse/internal/core"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	flagSeedFile    string
	flagSeedBudgets []string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import transactions from CSV and create budgets",
	Long: `Import transactions for --user from a CSV file with the columns
date,category,amount,description (date as YYYY-MM-DD, header row optional),
and create monthly budgets starting this month with --budget NAME=AMOUNT.
Use * as NAME for a budget covering every category.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&flagSeedFile, "file", "f", "", "CSV file of transactions")
	seedCmd.Flags().StringArrayVarP(&flagSeedBudgets, "budget", "b", nil, "Monthly budget as CATEGORY=AMOUNT (repeatable)")
	rootCmd.AddCommand(seedCmd)
}

type seedRow struct {
	date        time.Time
	category    string
	amount      decimal.Decimal
	description string
}

type seedBudget struct {
	category string // empty for every category
	amount   decimal.Decimal
}

func runSeed(cmd *cobra.Command, _ []string) error {
	if err := validateUser(); err != nil {
		return err
	}
	if flagSeedFile == "" && len(flagSeedBudgets) == 0 {
		return errors.New("nothing to seed: pass --file and/or --budget")
	}

	var rows []seedRow
	if flagSeedFile != "" {
		f, err := os.Open(flagSeedFile)
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		if rows, err = parseSeedCSV(f); err != nil {
			return err
		}
	}
	budgets := make([]seedBudget, 0, len(flagSeedBudgets))
	for _, raw := range flagSeedBudgets {
		b, err := parseBudgetFlag(raw)
		if err != nil {
			return err
		}
		budgets = append(budgets, b)
	}

	if os.Getenv("DATA_BACKEND") == "" || os.Getenv("DATA_BACKEND") == config.DataMemory {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: the memory backend does not outlive this command")
	}

	return withBackend(cmd, func(ctx context.Context, res *backend.BackendResult) error {
		n, err := seedLedger(ctx, res, flagUser, rows, budgets, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions and %d budgets for user %d\n", n, len(budgets), flagUser)
		return nil
	})
}

// seedLedger writes through the ledger service so every write is announced
// to the analytics side.
func seedLedger(ctx context.Context, res *backend.BackendResult, userID int64, rows []seedRow, budgets []seedBudget, now time.Time) (int, error) {
	categories := make(map[string]int64)
	categoryID := func(name string) (*int64, error) {
		if name == "" {
			return nil, nil
		}
		if id, ok := categories[name]; ok {
			return core.Int64Ptr(id), nil
		}
		c, err := res.Ledger.CreateCategory(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		categories[name] = c.ID
		return core.Int64Ptr(c.ID), nil
	}

	txs := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		cid, err := categoryID(r.category)
		if err != nil {
			return 0, err
		}
		txs = append(txs, core.Transaction{
			UserID:      userID,
			CategoryID:  cid,
			Amount:      r.amount,
			Date:        r.date,
			Description: r.description,
		})
	}
	n, err := res.Ledger.ImportTransactions(ctx, txs)
	if err != nil {
		return 0, err
	}

	start := core.MonthStart(now)
	for _, b := range budgets {
		cid, err := categoryID(b.category)
		if err != nil {
			return n, err
		}
		_, err = res.Ledger.RecordBudget(ctx, core.Budget{
			UserID:          userID,
			CategoryID:      cid,
			Amount:          b.amount,
			Period:          core.BudgetMonthly,
			StartDate:       start,
			EndDate:         start.AddDate(0, 1, -1),
			AlertThresholds: core.DefaultAlertThresholds,
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func parseSeedCSV(r io.Reader) ([]seedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	var rows []seedRow
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, rec[0])
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
		if err != nil || amount.IsNegative() {
			return nil, fmt.Errorf("line %d: invalid amount %q", line, rec[2])
		}
		desc := strings.TrimSpace(rec[3])
		if desc == "" {
			return nil, fmt.Errorf("line %d: %w", line, core.ErrEmptyDescription)
		}
		rows = append(rows, seedRow{
			date:        date,
			category:    strings.TrimSpace(rec[1]),
			amount:      amount,
			description: desc,
		})
	}
	return rows, nil
}

func parseBudgetFlag(raw string) (seedBudget, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return seedBudget{}, fmt.Errorf("invalid --budget %q: want CATEGORY=AMOUNT", raw)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !amount.IsPositive() {
		return seedBudget{}, fmt.Errorf("invalid --budget amount %q", value)
	}
	name = strings.TrimSpace(name)
	if name == "*" {
		name = ""
	}
	return seedBudget{category: name, amount: amount}, nil
}
