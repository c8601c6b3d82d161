package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/tradedesk/internal/blob/s3"
	"github.com/alanyoungcy/tradedesk/internal/cache/memory"
	"github.com/alanyoungcy/tradedesk/internal/cache/redis"
	"github.com/alanyoungcy/tradedesk/internal/config"
	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/market"
	"github.com/alanyoungcy/tradedesk/internal/notify"
	"github.com/alanyoungcy/tradedesk/internal/server/handler"
	"github.com/alanyoungcy/tradedesk/internal/store/postgres"
)

// Dependencies bundles what the modes need. Optional backends are nil when
// not configured.
type Dependencies struct {
	Markets domain.MarketSnapshotProvider

	// Stores (Postgres)
	TradeStore domain.TradeStore
	AuditStore domain.AuditStore

	// Bus, limiter and locks: Redis when enabled, in-process otherwise.
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	// LocalLimiter is set when the in-process limiter is used, so idle
	// buckets can be pruned.
	LocalLimiter *memory.RateLimiter

	// Blob storage (S3)
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Notifier *notify.Notifier

	// Backends are reported by the health check.
	Backends map[string]handler.Pinger
}

// pingFunc adapts a health function to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire builds every dependency the config enables and returns a cleanup
// function releasing them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Backends: map[string]handler.Pinger{}}

	// --- Market catalogue ---
	pairs, err := cfg.Market.TradingPairs()
	if err != nil {
		return fail(fmt.Errorf("wire: market pairs: %w", err))
	}
	static, err := market.NewStaticProvider(pairs, market.WithDepth(cfg.Market.Depth))
	if err != nil {
		return fail(fmt.Errorf("wire: market: %w", err))
	}
	deps.Markets = static

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			MaxRetries:  cfg.Redis.MaxRetries,
			DialTimeout: cfg.Redis.DialTimeout.Duration,
			TLSEnabled:  cfg.Redis.TLSEnabled,
			KeyPrefix:   cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.Markets = market.NewCachedProvider(static, redis.NewSnapshotCache(redisClient), cfg.Market.CacheTTL.Duration, logger)
		deps.Backends["redis"] = redisClient
	} else {
		logger.InfoContext(ctx, "redis disabled; using in-process bus, limiter and locks")
		limiter := memory.NewRateLimiter()
		deps.SignalBus = memory.NewSignalBus()
		deps.RateLimiter = limiter
		deps.LocalLimiter = limiter
		deps.LockManager = memory.NewLockManager()
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:             cfg.Postgres.DSN,
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.Database,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxConns:        cfg.Postgres.PoolMaxConns,
			MinConns:        cfg.Postgres.PoolMinConns,
			MaxConnIdleTime: cfg.Postgres.MaxIdleTime.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		pool := pgClient.Pool()
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Backends["postgres"] = pgClient
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Backends["s3"] = pingFunc(s3Client.Health)
		if deps.TradeStore != nil {
			deps.Archiver = s3blob.NewTradeArchiver(s3blob.NewWriter(s3Client), deps.TradeStore, deps.AuditStore, cfg.Archive.Purge, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	if deps.Notifier.Enabled() {
		names := make([]string, len(senders))
		for i, s := range senders {
			names[i] = s.Name()
		}
		logger.InfoContext(ctx, "notifications enabled", slog.String("senders", strings.Join(names, ",")))
	}

	return deps, cleanup, nil
}
