package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"finpulse/internal/analytics"
	"finpulse/internal/backend"
	"finpulse/internal/core"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print the full analytics bundle for a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBundle(cmd, false)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Drop the cached bundle and recompute it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBundle(cmd, true)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the financial health score",
	RunE:  runHealth,
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print next month's spending forecast",
	RunE:  runForecast,
}

func init() {
	rootCmd.AddCommand(analyzeCmd, refreshCmd, healthCmd, forecastCmd)
}

func runBundle(cmd *cobra.Command, refresh bool) error {
	if err := validateUser(); err != nil {
		return err
	}
	return withBackend(cmd, func(ctx context.Context, res *backend.BackendResult) error {
		var (
			b   analytics.Bundle
			err error
		)
		if refresh {
			b, err = res.Engine.RefreshAnalytics(ctx, flagUser, period())
		} else {
			b, err = res.Engine.GenerateUserAnalytics(ctx, flagUser, period())
		}
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), b)
		}
		printBundle(cmd.OutOrStdout(), b)
		return nil
	})
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if err := validateUser(); err != nil {
		return err
	}
	return withBackend(cmd, func(ctx context.Context, res *backend.BackendResult) error {
		h, err := res.Engine.CalculateFinancialHealth(ctx, flagUser, period())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), h)
		}
		printHealth(cmd.OutOrStdout(), h)
		return nil
	})
}

func runForecast(cmd *cobra.Command, _ []string) error {
	if err := validateUser(); err != nil {
		return err
	}
	return withBackend(cmd, func(ctx context.Context, res *backend.BackendResult) error {
		f, err := res.Engine.GenerateForecasts(ctx, flagUser, period())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), f)
		}
		printForecast(cmd.OutOrStdout(), f)
		return nil
	})
}

func printBundle(w io.Writer, b analytics.Bundle) {
	source := "computed"
	if b.Cached {
		source = "cached"
	}
	fmt.Fprintf(w, "User %d, %s analytics (%s at %s)\n\n", b.UserID, b.Period, source, b.GeneratedAt.Format("2006-01-02 15:04"))
	printHealth(w, b.FinancialHealth)

	fmt.Fprintln(w, "\nTop categories")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range b.Insights.TopCategories {
		fmt.Fprintf(tw, "  %s\t%s\t%d tx\n", c.Name, c.Amount.StringFixed(2), c.Count)
	}
	tw.Flush()

	t := b.Insights.Trend
	fmt.Fprintf(w, "\nThis month %s vs %s last month (%s %.1f%%)\n",
		t.CurrentMonth.StringFixed(2), t.PreviousMonth.StringFixed(2), t.Direction, t.Percentage)

	if len(b.Insights.BudgetPerformance) > 0 {
		fmt.Fprintln(w, "\nBudgets")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, p := range b.Insights.BudgetPerformance {
			fmt.Fprintf(tw, "  %s\t%s / %s\t%.0f%%\t%s\n",
				p.Category, p.Spent.StringFixed(2), p.Budgeted.StringFixed(2), p.Utilization, p.Status)
		}
		tw.Flush()
	}

	patterns := b.SpendingPatterns.All()
	if len(patterns) > 0 {
		fmt.Fprintln(w, "\nPatterns")
		for _, p := range patterns {
			fmt.Fprintf(w, "  [%s] %s (confidence %.2f)\n", p.Type, p.Description, p.ConfidenceScore)
		}
	}

	if len(b.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations")
		for _, r := range b.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r.Message)
		}
	}

	fmt.Fprintln(w)
	printForecast(w, b.Forecasts)

	for _, warn := range b.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func printHealth(w io.Writer, h core.HealthScore) {
	fmt.Fprintf(w, "Financial health: %.1f / 100\n", h.Overall)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range []struct {
		name  string
		score core.ScoreSource
	}{
		{"budget adherence", h.BudgetAdherence},
		{"spending consistency", h.SpendingConsistency},
		{"savings rate", h.SavingsRate},
		{"category balance", h.CategoryBalance},
	} {
		note := ""
		if !s.score.Computed {
			note = "(not enough data)"
		}
		fmt.Fprintf(tw, "  %s\t%.1f\t%s\n", s.name, s.score.Value, note)
	}
	tw.Flush()
	for _, r := range h.Recommendations {
		fmt.Fprintf(w, "  * %s\n", r)
	}
}

func printForecast(w io.Writer, f analytics.ForecastBundle) {
	fmt.Fprintf(w, "Next month forecast: %s (%s, %d months of history)\n",
		f.NextMonth.Amount.StringFixed(2), f.NextMonth.Method, f.NextMonth.MonthsUsed)
	fmt.Fprintf(w, "Trend: %s %.1f%%\n", f.Trend.Direction, f.Trend.Percentage)
	for _, m := range f.History {
		fmt.Fprintf(w, "  %s  %s\n", m.Label(), m.Total.StringFixed(2))
	}
}
