package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"finpulse/internal/cli"
	"finpulse/internal/config"
	"finpulse/internal/gormstore"
	"finpulse/internal/storage"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd, "up")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration (sqlite only)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd, "down")
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version (sqlite only)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd, "version")
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, action string) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}

	switch cfg.DataBackend {
	case config.DataSQLite:
		return migrateSQLite(cmd, cfg.SQLiteDBPath, action)
	case config.DataMySQL:
		if action != "up" {
			return fmt.Errorf("migrate %s is not supported for mysql; the schema is managed by auto-migration", action)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()
		st, err := gormstore.Open(gormstore.Config{
			User:     cfg.MySQLUser,
			Password: cfg.MySQLPassword,
			Host:     cfg.MySQLHost,
			Port:     cfg.MySQLPort,
			Name:     cfg.MySQLDatabase,
		})
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "MySQL schema is up to date")
		return nil
	default:
		return fmt.Errorf("backend %q has no schema", cfg.DataBackend)
	}
}

func migrateSQLite(cmd *cobra.Command, path, action string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	m, err := storage.NewMigrator(path)
	if err != nil {
		return err
	}
	defer m.Close()

	switch action {
	case "up":
		if err := m.Up(); err != nil {
			return err
		}
	case "down":
		if err := m.Down(); err != nil {
			return err
		}
	}

	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}
