// Command migrate runs database migrations via goose.
//
// Usage:
//
//	go run ./cmd/migrate up          # Apply all pending migrations
//	go run ./cmd/migrate down        # Roll back the last migration
//	go run ./cmd/migrate status      # Show migration status
//	go run ./cmd/migrate version     # Show current schema version
//	go run ./cmd/migrate redo        # Roll back and re-apply last migration
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/loticredit/loticredit/internal/config"
	"github.com/loticredit/loticredit/internal/logging"
	"github.com/loticredit/loticredit/internal/retry"
)

const defaultMigrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, "text")

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	dir := defaultMigrationsDir
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		dir = v
	}

	if err := run(context.Background(), logger, cfg.DatabaseURL, dir, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("migration failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, dbURL, dir, command string, args []string) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := retry.Do(ctx, 5, time.Second, db.PingContext); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))

	return goose.RunContext(ctx, command, db, dir, args...)
}
