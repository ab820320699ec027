package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "invites.checkin.recorded", cfg.Kafka.Topics.CheckIns)
	assert.Equal(t, 1024, cfg.Card.QRRenderSize)
	assert.InDelta(t, 0.3, cfg.Card.DefaultQRSize, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 30*time.Minute, cfg.Scan.SessionIdle)
	assert.Equal(t, "@every 5m", cfg.Scan.SweepSchedule)
	assert.Equal(t, 5*time.Minute, cfg.Auth.TokenCacheTTL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "postgres://u:p@db:5432/invites?sslmode=disable")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CHECKIN_LOCK_TTL", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("CARD_DEFAULT_QR_SIZE", "0.25")
	t.Setenv("CARD_EXPORT_CONCURRENCY", "8")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/invites?sslmode=disable", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.InDelta(t, 0.25, cfg.Card.DefaultQRSize, 1e-9)
	assert.Equal(t, 8, cfg.Card.ExportConcurrency)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DB_AUTO_MIGRATE", "maybe")
	t.Setenv("CARD_QR_RENDER_SIZE", "big")
	t.Setenv("CHECKIN_LOCK_TTL", "soon")

	cfg := Load()

	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 1024, cfg.Card.QRRenderSize)
	assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
}
