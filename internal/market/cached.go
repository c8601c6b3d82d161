package market

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// CachedProvider is a read-through cache over another provider. Pair and
// book snapshots are served from the SnapshotCache while fresh; misses and
// cache failures fall through to the inner provider.
type CachedProvider struct {
	inner  domain.MarketSnapshotProvider
	cache  domain.SnapshotCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedProvider wraps inner with cache. A non-positive ttl defaults to
// five seconds.
func NewCachedProvider(inner domain.MarketSnapshotProvider, cache domain.SnapshotCache, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &CachedProvider{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "market_cache")),
	}
}

// Pairs is not cached; the catalogue is small and order matters.
func (c *CachedProvider) Pairs(ctx context.Context) ([]domain.TradingPair, error) {
	return c.inner.Pairs(ctx)
}

func (c *CachedProvider) Pair(ctx context.Context, symbol string) (domain.TradingPair, error) {
	sym := domain.NormalizeSymbol(symbol)
	pair, err := c.cache.GetPair(ctx, sym)
	if err == nil {
		return pair, nil
	}
	c.logMiss("pair", sym, err)

	pair, err = c.inner.Pair(ctx, sym)
	if err != nil {
		return domain.TradingPair{}, err
	}
	if err := c.cache.SetPair(ctx, pair, c.ttl); err != nil {
		c.logger.Warn("cache pair failed", slog.String("pair", sym), slog.String("error", err.Error()))
	}
	return pair, nil
}

func (c *CachedProvider) OrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	sym := domain.NormalizeSymbol(symbol)
	snap, err := c.cache.GetBook(ctx, sym)
	if err == nil {
		return snap, nil
	}
	c.logMiss("book", sym, err)

	snap, err = c.inner.OrderBook(ctx, sym)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	if err := c.cache.SetBook(ctx, snap, c.ttl); err != nil {
		c.logger.Warn("cache book failed", slog.String("pair", sym), slog.String("error", err.Error()))
	}
	return snap, nil
}

// MarketTrades is not cached; tape timestamps are relative to now.
func (c *CachedProvider) MarketTrades(ctx context.Context, symbol string) ([]domain.MarketTrade, error) {
	return c.inner.MarketTrades(ctx, symbol)
}

func (c *CachedProvider) logMiss(kind, symbol string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	c.logger.Warn("snapshot cache read failed",
		slog.String("kind", kind),
		slog.String("pair", symbol),
		slog.String("error", err.Error()),
	)
}

var _ domain.MarketSnapshotProvider = (*CachedProvider)(nil)
