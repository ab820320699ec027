package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-invites/internal/config"
	"ms-invites/internal/database"
	"ms-invites/internal/database/migrations"
	"ms-invites/internal/logger"
)

func memoryConfig(autoMigrate bool) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		AutoMigrate: autoMigrate,
		MaxRetries:  1,
	}
}

func TestConnectMigratesToLatest(t *testing.T) {
	ctx := context.Background()
	bunDB, err := database.Connect(ctx, memoryConfig(true), logger.Discard())
	require.NoError(t, err)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{Driver: "sqlite", AutoMigrate: true}, logger.Discard())
	version, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, migrations.LatestVersion, version)

	// Running again is a no-op.
	require.NoError(t, runner.RunMigrations())
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig(true)
	cfg.Driver = "oracle"
	_, err := database.Connect(context.Background(), cfg, logger.Discard())
	assert.Error(t, err)
}

func TestMigrationThreeSnapshotsContactNames(t *testing.T) {
	ctx := context.Background()
	bunDB, err := database.Connect(ctx, memoryConfig(false), logger.Discard())
	require.NoError(t, err)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{Driver: "sqlite", AutoMigrate: true}, logger.Discard())
	require.NoError(t, runner.MigrateTo(2))

	now := time.Now().UTC()
	contactID, eventID, inviteID := uuid.NewString(), uuid.NewString(), uuid.NewString()

	_, err = bunDB.ExecContext(ctx, "INSERT INTO contacts (id, created_at, name) VALUES (?, ?, ?)", contactID, now, "Ada Lovelace")
	require.NoError(t, err)
	_, err = bunDB.ExecContext(ctx, "INSERT INTO events (id, created_at, updated_at, title, date) VALUES (?, ?, ?, ?, ?)", eventID, now, now, "Conf", now)
	require.NoError(t, err)
	_, err = bunDB.ExecContext(ctx, "INSERT INTO invites (id, created_at, event_id, contact_id) VALUES (?, ?, ?, ?)", inviteID, now, eventID, contactID)
	require.NoError(t, err)

	require.NoError(t, runner.MigrateTo(3))

	var name string
	require.NoError(t, bunDB.QueryRowContext(ctx, "SELECT contact_name FROM invites WHERE id = ?", inviteID).Scan(&name))
	assert.Equal(t, "Ada Lovelace", name)

	// Blank invites are valid from version 3 on.
	_, err = bunDB.ExecContext(ctx,
		"INSERT INTO invites (id, created_at, event_id, contact_name, max_check_ins) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), now, eventID, "General Invite #2", 2)
	require.NoError(t, err)

	// Going back drops the contact-less invite.
	require.NoError(t, runner.MigrateTo(2))
	var count int
	require.NoError(t, bunDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM invites").Scan(&count))
	assert.Equal(t, 1, count)
}
