// Package config defines the tradedesk configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// Config is the root configuration. Fields come from a TOML file and may be
// overridden by TRADEDESK_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Session  SessionConfig  `toml:"session"`
	Market   MarketConfig   `toml:"market"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile LogFileConfig `toml:"log_file"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per RateWindow per client IP; 0 disables.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// SessionConfig tunes order-entry sessions.
type SessionConfig struct {
	TradeLogSize    int      `toml:"trade_log_size"`
	NotificationTTL duration `toml:"notification_ttl"`
	IdleTTL         duration `toml:"idle_ttl"`
	SweepInterval   duration `toml:"sweep_interval"`
	MaxSessions     int      `toml:"max_sessions"`
	OrderRateLimit  int      `toml:"order_rate_limit"`
	OrderRateWindow duration `toml:"order_rate_window"`
}

// PairConfig is one catalogue entry. Prices are strings so they stay exact.
type PairConfig struct {
	Symbol   string `toml:"symbol"`
	Price    string `toml:"price"`
	Change   string `toml:"change"`
	Volume   string `toml:"vol"`
	Decimals int32  `toml:"decimals"`
}

// MarketConfig holds the pair catalogue and market data settings.
type MarketConfig struct {
	// Pairs overrides the built-in catalogue when non-empty.
	Pairs        []PairConfig `toml:"pairs"`
	DefaultPair  string       `toml:"default_pair"`
	Depth        int          `toml:"depth"`
	CacheTTL     duration     `toml:"cache_ttl"`
	BookInterval duration     `toml:"book_interval"`
}

// RedisConfig holds Redis connection parameters. When disabled the bus and
// limiters run in process.
type RedisConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	DialTimeout duration `toml:"dial_timeout"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	KeyPrefix   string   `toml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool     `toml:"enabled"`
	DSN           string   `toml:"dsn"`
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	Database      string   `toml:"database"`
	User          string   `toml:"user"`
	Password      string   `toml:"password"`
	SSLMode       string   `toml:"ssl_mode"`
	PoolMaxConns  int      `toml:"pool_max_conns"`
	PoolMinConns  int      `toml:"pool_min_conns"`
	MaxIdleTime   duration `toml:"max_idle_time"`
	RunMigrations bool     `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ArchiveConfig controls archiving executed trades to S3.
type ArchiveConfig struct {
	Interval  duration `toml:"interval"`
	Retention duration `toml:"retention"`
	// Purge deletes archived trades from Postgres after upload.
	Purge   bool     `toml:"purge"`
	LockTTL duration `toml:"lock_ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// LogFileConfig configures rotated file logging.
type LogFileConfig struct {
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration wraps time.Duration so TOML strings like "5m" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config that runs standalone: in-process bus, no
// database, no object storage.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Session: SessionConfig{
			TradeLogSize:    10,
			NotificationTTL: duration{domain.DefaultNotificationTTL},
			IdleTTL:         duration{30 * time.Minute},
			SweepInterval:   duration{time.Minute},
			MaxSessions:     1000,
			OrderRateLimit:  10,
			OrderRateWindow: duration{time.Second},
		},
		Market: MarketConfig{
			DefaultPair:  "BTC/USDT",
			Depth:        5,
			CacheTTL:     duration{5 * time.Second},
			BookInterval: duration{2 * time.Second},
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    20,
			MaxRetries:  3,
			DialTimeout: duration{5 * time.Second},
			KeyPrefix:   "tradedesk:",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tradedesk",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			MaxIdleTime:   duration{5 * time.Minute},
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tradedesk",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval:  duration{time.Hour},
			Retention: duration{7 * 24 * time.Hour},
			LockTTL:   duration{10 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"order_placed", "archive_complete", "archive_failed"},
		},
		LogFile: LogFileConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"full":    true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// TradingPairs converts the configured catalogue. An empty catalogue
// returns nil so the built-in one is used.
func (m MarketConfig) TradingPairs() ([]domain.TradingPair, error) {
	if len(m.Pairs) == 0 {
		return nil, nil
	}
	out := make([]domain.TradingPair, 0, len(m.Pairs))
	for i, p := range m.Pairs {
		price, err := domain.ParseDecimal(p.Price)
		if err != nil {
			return nil, fmt.Errorf("market.pairs[%d] %s: price %q: %w", i, p.Symbol, p.Price, err)
		}
		change := decimal.Zero
		if p.Change != "" {
			if change, err = domain.ParseDecimal(p.Change); err != nil {
				return nil, fmt.Errorf("market.pairs[%d] %s: change %q: %w", i, p.Symbol, p.Change, err)
			}
		}
		out = append(out, domain.TradingPair{
			Symbol:   domain.NormalizeSymbol(p.Symbol),
			Price:    price,
			Change:   change,
			Volume:   p.Volume,
			Decimals: p.Decimals,
		})
	}
	return out, nil
}

// Validate checks c and returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, full, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
	}

	if c.Session.TradeLogSize < 1 {
		errs = append(errs, "session: trade_log_size must be >= 1")
	}
	if c.Session.NotificationTTL.Duration <= 0 {
		errs = append(errs, "session: notification_ttl must be > 0")
	}
	if c.Session.MaxSessions < 0 {
		errs = append(errs, "session: max_sessions must be >= 0")
	}
	if c.Session.OrderRateLimit > 0 && c.Session.OrderRateWindow.Duration <= 0 {
		errs = append(errs, "session: order_rate_window must be > 0 when order_rate_limit is set")
	}

	if c.Market.Depth < 1 || c.Market.Depth > 5 {
		errs = append(errs, fmt.Sprintf("market: depth must be 1-5, got %d", c.Market.Depth))
	}
	if _, err := c.Market.TradingPairs(); err != nil {
		errs = append(errs, err.Error())
	}
	if strings.TrimSpace(c.Market.DefaultPair) == "" {
		errs = append(errs, "market: default_pair must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	mode := strings.ToLower(c.Mode)
	if mode == "full" || mode == "archive" {
		if !c.Postgres.Enabled {
			errs = append(errs, "archive: postgres must be enabled for mode "+mode)
		}
		if !c.S3.Enabled {
			errs = append(errs, "archive: s3 must be enabled for mode "+mode)
		}
		if c.Archive.Retention.Duration < 0 {
			errs = append(errs, "archive: retention must be >= 0")
		}
		if mode == "full" && c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
