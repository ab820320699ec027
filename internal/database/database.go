package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-invites/internal/config"
	"ms-invites/internal/database/migrations"
	"ms-invites/internal/logger"
)

// Connect opens the configured database, retrying until it answers a ping, and
// brings the schema up to date when auto migration is on.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	driverName, err := sqlDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var sqldb *sql.DB
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", cfg.Driver, i+1, maxRetries))
		sqldb, err = sql.Open(driverName, cfg.DSN)
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", cfg.Driver, err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, maxRetries, err)
	}

	maxOpen, maxIdle := poolSize(cfg)
	sqldb.SetMaxOpenConns(maxOpen)
	sqldb.SetMaxIdleConns(maxIdle)
	if cfg.MaxLifetime > 0 && cfg.Driver != "sqlite" {
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	bunDB := Wrap(sqldb, cfg.Driver)
	log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", cfg.Driver))

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		Driver:      cfg.Driver,
		AutoMigrate: cfg.AutoMigrate,
	}, log)
	if err := runner.RunMigrations(); err != nil {
		bunDB.Close()
		return nil, err
	}

	return bunDB, nil
}

// Wrap attaches the bun dialect matching driver to an open connection pool.
func Wrap(sqldb *sql.DB, driver string) *bun.DB {
	if driver == "postgres" {
		return bun.NewDB(sqldb, pgdialect.New())
	}
	return bun.NewDB(sqldb, sqlitedialect.New())
}

// poolSize keeps SQLite on a single connection so writers never hit SQLITE_BUSY and
// in-memory databases stay one database. The postgres migration driver pins one
// connection for its lifetime, so postgres needs more than one.
func poolSize(cfg config.DatabaseConfig) (int, int) {
	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if cfg.Driver == "sqlite" {
		return 1, 1
	}
	if maxOpen < 2 {
		maxOpen = 25
	}
	if maxIdle < 1 {
		maxIdle = maxOpen
	}
	return maxOpen, maxIdle
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return sqliteshim.ShimName, nil
	case "postgres":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
