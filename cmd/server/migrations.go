package main

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// migrationTableName is the goose bookkeeping table.
const migrationTableName = "schema_migrations"

// setupGoose points goose at the embedded migration files.
func setupGoose() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// migrateUp applies all pending migrations.
func migrateUp(db *sql.DB, logger *slog.Logger) error {
	if err := setupGoose(); err != nil {
		return err
	}

	logger.Info("applying pending migrations")
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		logger.Warn("failed to read migration version", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("migrations applied", slog.Int64("version", version))
	return nil
}

// runMigrationCommand executes one explicit migration command and returns.
func runMigrationCommand(db *sql.DB, command string, logger *slog.Logger) error {
	if err := setupGoose(); err != nil {
		return err
	}

	logger.Info("executing migration command", slog.String("command", command))

	var err error
	switch command {
	case "up":
		err = goose.Up(db, "migrations")
	case "down":
		err = goose.Down(db, "migrations")
	case "status":
		err = goose.Status(db, "migrations")
	case "version":
		err = goose.Version(db, "migrations")
	default:
		return fmt.Errorf("unknown migration command: %s (expected up, down, status, or version)", command)
	}
	if err != nil {
		return fmt.Errorf("migration command %q failed: %w", command, err)
	}
	return nil
}
