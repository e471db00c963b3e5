package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zargusta/fundtracker/internal/config"
	"github.com/zargusta/fundtracker/internal/database"
	"github.com/zargusta/fundtracker/internal/fund"
)

// Open returns the repository selected by cfg.Store.Backend and a function that
// releases it.
func Open(ctx context.Context, cfg *config.Config) (fund.Repository, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		return openSQL(ctx, database.DriverPostgres, cfg.ConnectionString())
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating sqlite directory: %w", err)
		}

		return openSQL(ctx, database.DriverSQLite, cfg.Store.SQLitePath)
	default:
		fs, err := NewFileStore(cfg.Store.DataDir)
		if err != nil {
			return nil, nil, err
		}

		return fs, func() error { return nil }, nil
	}
}

func openSQL(ctx context.Context, driver, dsn string) (fund.Repository, func() error, error) {
	db, err := database.New(ctx, driver, dsn)
	if err != nil {
		return nil, nil, err
	}

	return NewSQLStore(db, driver), db.Close, nil
}
