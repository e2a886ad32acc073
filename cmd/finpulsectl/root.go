package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"finpulse/internal/backend"
	"finpulse/internal/cli"
	"finpulse/internal/core"
	"finpulse/internal/log"

	"github.com/spf13/cobra"
)

var (
	flagUser    int64
	flagPeriod  string
	flagJSON    bool
	flagEnvFile string
	flagTimeout time.Duration
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "finpulsectl",
	Short: "Personal finance analytics from the command line",
	Long:  "Compute spending patterns, health scores, insights and forecasts, seed a ledger and manage the schema.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagEnvFile != "" {
			cli.LoadEnvFile(flagEnvFile)
		} else {
			cli.LoadEnvFile()
		}
	},
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Int64VarP(&flagUser, "user", "u", 1, "User id")
	rootCmd.PersistentFlags().StringVarP(&flagPeriod, "period", "p", string(core.PeriodMonthly), "Analysis period (weekly, monthly, quarterly, yearly)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print raw JSON")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load environment from this file instead of .env")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "Overall command timeout")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log to stderr")
}

// commandLogger discards logs unless --verbose is set so command output
// stays readable.
func commandLogger() *log.Logger {
	if !flagVerbose {
		return log.Discard()
	}
	return log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentCLI,
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    os.Stderr,
	})
}

// withBackend builds the configured backend, runs fn and releases it.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, res *backend.BackendResult) error) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	res, err := backend.Build(ctx, cfg, commandLogger())
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cleanup: %v\n", err)
		}
	}()
	return fn(ctx, res)
}

func validateUser() error {
	if flagUser <= 0 {
		return fmt.Errorf("--user must be a positive integer, got %d", flagUser)
	}
	return nil
}

func period() core.Period {
	return core.ParsePeriod(flagPeriod)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
