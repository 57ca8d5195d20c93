package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HUNCHD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HUNCHD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "HUNCHD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "HUNCHD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "HUNCHD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "HUNCHD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "HUNCHD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "HUNCHD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "HUNCHD_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "HUNCHD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "HUNCHD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "HUNCHD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "HUNCHD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HUNCHD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HUNCHD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HUNCHD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HUNCHD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HUNCHD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "HUNCHD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "HUNCHD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HUNCHD_S3_REGION")
	setStr(&cfg.S3.Bucket, "HUNCHD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HUNCHD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HUNCHD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HUNCHD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HUNCHD_S3_FORCE_PATH_STYLE")

	// ── Resolution ──
	setInt64(&cfg.Resolution.HouseEdgeBps, "HUNCHD_RESOLUTION_HOUSE_EDGE_BPS")
	setInt(&cfg.Resolution.OutboxBatchSize, "HUNCHD_RESOLUTION_OUTBOX_BATCH_SIZE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "HUNCHD_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "HUNCHD_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "HUNCHD_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "HUNCHD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "HUNCHD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "HUNCHD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "HUNCHD_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "HUNCHD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "HUNCHD_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "HUNCHD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "HUNCHD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "HUNCHD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "HUNCHD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "HUNCHD_MODE")
	setStr(&cfg.LogLevel, "HUNCHD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
