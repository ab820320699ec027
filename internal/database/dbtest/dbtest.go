// Package dbtest opens throwaway in-memory databases migrated to the latest schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-invites/internal/config"
	"ms-invites/internal/database"
	"ms-invites/internal/logger"
)

// New returns a migrated SQLite database that lives until the test ends.
func New(t testing.TB) *bun.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		AutoMigrate: true,
		MaxRetries:  1,
	}

	bunDB, err := database.Connect(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}
