package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path onto Defaults, loads .env when present
// and applies TRADEDESK_* overrides. An empty path skips the file. The
// result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			keys := make([]string, len(undec))
			for i, k := range undec {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets operators inject secrets and toggles at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "TRADEDESK_MODE")
	setStr(&cfg.LogLevel, "TRADEDESK_LOG_LEVEL")
	setStr(&cfg.LogFile.Path, "TRADEDESK_LOG_FILE")

	// ── Server ──
	setInt(&cfg.Server.Port, "TRADEDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADEDESK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRADEDESK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TRADEDESK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TRADEDESK_SERVER_RATE_WINDOW")

	// ── Session ──
	setInt(&cfg.Session.TradeLogSize, "TRADEDESK_SESSION_TRADE_LOG_SIZE")
	setDuration(&cfg.Session.NotificationTTL, "TRADEDESK_SESSION_NOTIFICATION_TTL")
	setDuration(&cfg.Session.IdleTTL, "TRADEDESK_SESSION_IDLE_TTL")
	setInt(&cfg.Session.MaxSessions, "TRADEDESK_SESSION_MAX_SESSIONS")
	setInt(&cfg.Session.OrderRateLimit, "TRADEDESK_SESSION_ORDER_RATE_LIMIT")

	// ── Market ──
	setStr(&cfg.Market.DefaultPair, "TRADEDESK_MARKET_DEFAULT_PAIR")
	setInt(&cfg.Market.Depth, "TRADEDESK_MARKET_DEPTH")
	setDuration(&cfg.Market.CacheTTL, "TRADEDESK_MARKET_CACHE_TTL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRADEDESK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADEDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADEDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADEDESK_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "TRADEDESK_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "TRADEDESK_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRADEDESK_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRADEDESK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADEDESK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADEDESK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADEDESK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADEDESK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADEDESK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADEDESK_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "TRADEDESK_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRADEDESK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRADEDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADEDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADEDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADEDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADEDESK_S3_SECRET_KEY")
	setStr(&cfg.S3.Prefix, "TRADEDESK_S3_PREFIX")

	// ── Archive ──
	setDuration(&cfg.Archive.Interval, "TRADEDESK_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.Retention, "TRADEDESK_ARCHIVE_RETENTION")
	setBool(&cfg.Archive.Purge, "TRADEDESK_ARCHIVE_PURGE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRADEDESK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRADEDESK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRADEDESK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRADEDESK_NOTIFY_EVENTS")
}

// Typed env helpers. Each only mutates the target when the variable is set
// to a value that parses.

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
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
