package admin

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/config"
	"github.com/domenicocinque/web-rag/internal/database"
	"github.com/domenicocinque/web-rag/internal/logger"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the chunk store schema",
		Long:  "Apply or roll back the PostgreSQL schema used by the pgvector chunk store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, database.Migrate)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, database.MigrateDown)
		},
	})

	return cmd
}

func runMigrate(cmd *cobra.Command, step func(string, *zap.Logger) (database.MigrationStatus, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasPostgres() {
		return errors.New("WEBRAG_DATABASE_URL not set")
	}

	log, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	status, err := step(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}

	if status.Applied {
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", status.Version)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
	}
	return nil
}
