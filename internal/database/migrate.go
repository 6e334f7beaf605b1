package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus reports the schema version after a migration run.
type MigrationStatus struct {
	Version uint
	Applied bool
}

// Migrate applies every pending up migration.
func Migrate(databaseURL string, logger *zap.Logger) (MigrationStatus, error) {
	return runMigration(databaseURL, logger, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back every migration.
func MigrateDown(databaseURL string, logger *zap.Logger) (MigrationStatus, error) {
	return runMigration(databaseURL, logger, func(m *migrate.Migrate) error { return m.Down() })
}

func runMigration(databaseURL string, logger *zap.Logger, step func(*migrate.Migrate) error) (MigrationStatus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	stepErr := step(m)
	if stepErr != nil && !errors.Is(stepErr, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("failed to apply migrations: %w", stepErr)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("migrations: no schema version recorded")
		return MigrationStatus{Applied: stepErr == nil}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return MigrationStatus{}, fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	status := MigrationStatus{Version: version, Applied: stepErr == nil}
	if status.Applied {
		logger.Info("migrations: applied successfully", zap.Uint("version", version))
	} else {
		logger.Info("migrations: database is up to date", zap.Uint("version", version))
	}
	return status, nil
}
