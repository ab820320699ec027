package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Card     CardConfig
	Scan     ScanConfig
	LogDir   string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver       string // sqlite or postgres
	DSN          string
	AutoMigrate  bool
	MaxOpenConns int // 0 picks a per-driver default
	MaxIdleConns int
	MaxLifetime  time.Duration
	MaxRetries   int
}

type RedisConfig struct {
	Enabled bool
	Addr    string
	LockTTL time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	GroupID string // prefix, each process consumes in its own group
	Topics  TopicConfig
}

type TopicConfig struct {
	CheckIns string
}

type AuthConfig struct {
	Enabled       bool
	JWTSecret     string
	OIDCIssuer    string
	OIDCClientID  string
	TokenCacheTTL time.Duration // only used with Redis
}

type CardConfig struct {
	QRRenderSize      int
	DefaultQRSize     float64
	ExportConcurrency int
}

type ScanConfig struct {
	SessionIdle   time.Duration
	SweepSchedule string // cron spec
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:          getEnv("DB_DSN", "file:invites.db?cache=shared"),
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 0),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 0),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			MaxRetries:   getEnvInt("DB_MAX_RETRIES", 5),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED", false),
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			LockTTL: getEnvDuration("CHECKIN_LOCK_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "invite-service"),
			Topics: TopicConfig{
				CheckIns: getEnv("KAFKA_TOPIC_CHECKINS", "invites.checkin.recorded"),
			},
		},
		Auth: AuthConfig{
			Enabled:       getEnvBool("AUTH_ENABLED", true),
			JWTSecret:     getEnv("JWT_SECRET", ""),
			OIDCIssuer:    getEnv("OIDC_ISSUER", ""),
			OIDCClientID:  getEnv("OIDC_CLIENT_ID", ""),
			TokenCacheTTL: getEnvDuration("AUTH_TOKEN_CACHE_TTL", 5*time.Minute),
		},
		Card: CardConfig{
			QRRenderSize:      getEnvInt("CARD_QR_RENDER_SIZE", 1024),
			DefaultQRSize:     getEnvFloat("CARD_DEFAULT_QR_SIZE", 0.3),
			ExportConcurrency: getEnvInt("CARD_EXPORT_CONCURRENCY", 4),
		},
		Scan: ScanConfig{
			SessionIdle:   getEnvDuration("SCAN_SESSION_IDLE", 30*time.Minute),
			SweepSchedule: getEnv("SCAN_SESSION_SWEEP", "@every 5m"),
		},
		LogDir: getEnv("LOG_DIR", "logs"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
