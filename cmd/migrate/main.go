package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/cassiomorais/edi-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	"github.com/cassiomorais/edi-gateway/internal/repository/postgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dbURL    string
		logLevel string
	)

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the edi-gateway database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbURL, "db", "", "Database URL (default: DATABASE_URL, then the service config)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")

	// withMigrator opens the migrator for one command run.
	withMigrator := func(fn func(m *migrate.Migrate, logger zerolog.Logger, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			logger := observability.InitConsoleLogger(logLevel, cmd.ErrOrStderr())
			url, err := resolveDatabaseURL(dbURL)
			if err != nil {
				return err
			}
			m, err := postgres.NewMigrator(url)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(m, logger, args)
		}
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(m *migrate.Migrate, logger zerolog.Logger, _ []string) error {
			if err := m.Up(); err != nil {
				if errors.Is(err, migrate.ErrNoChange) {
					logger.Info().Msg("Schema is up to date")
					return nil
				}
				return fmt.Errorf("migration up failed: %w", err)
			}
			logger.Info().Msg("Migrations applied successfully")
			return nil
		}),
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (one step by default)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(m *migrate.Migrate, logger zerolog.Logger, _ []string) error {
			var err error
			if steps <= 0 {
				err = m.Down()
			} else {
				err = m.Steps(-steps)
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration down failed: %w", err)
			}
			logger.Info().Int("steps", steps).Msg("Migrations rolled back successfully")
			return nil
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back; 0 rolls back everything")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(m *migrate.Migrate, logger zerolog.Logger, _ []string) error {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Info().Msg("No migrations applied")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("Schema version")
			return nil
		}),
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations, clearing the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(m *migrate.Migrate, logger zerolog.Logger, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force version: %w", err)
			}
			logger.Warn().Int("version", v).Msg("Schema version forced")
			return nil
		}),
	}

	root.AddCommand(up, down, version, force)
	return root
}

func resolveDatabaseURL(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("DATABASE_URL"); env != "" {
		return env, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("no --db or DATABASE_URL given and config failed to load: %w", err)
	}
	return cfg.Database.DatabaseURL(), nil
}
