package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
	repo "github.com/renanrgarcia/google-sheets-text-automation/internal/repository"
)

// ConnectDB opens the run-history database described by cfg and migrates it.
// inMemory forces a throwaway SQLite database.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, inMemory bool, logger *slog.Logger) (*repo.DB, repo.RunRepository, error) {
	rc := repo.Config{
		DSN:              cfg.DSN,
		SQLitePath:       cfg.SQLitePath,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}
	if inMemory {
		rc.DSN = ""
		rc.SQLitePath = ":memory:"
	}

	db, err := repo.Open(ctx, rc, logger)
	if err != nil {
		return nil, nil, err
	}
	runs := repo.NewRunRepository(db, logger)
	if err := runs.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, runs, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *repo.DB, timeout time.Duration) error {
	return db.HealthCheck(ctx, timeout)
}
