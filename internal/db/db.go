package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/querypilot/querypilot/internal/config"
)

// Open connects to the configured target database. The handle is used
// read-only: schema introspection and query execution.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Target == "" {
		return nil, fmt.Errorf("database target is required")
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Dialect {
	case config.DialectSQLite:
		db, err = sql.Open("sqlite", cfg.Target)
	case config.DialectPostgreSQL:
		db, err = sql.Open("pgx", cfg.Target)
	default:
		return nil, fmt.Errorf("unsupported dialect: %q", cfg.Dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Dialect, err)
	}

	return db, nil
}
