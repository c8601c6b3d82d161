package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// SnapshotCache implements domain.SnapshotCache using Redis hashes for pairs
// and sorted sets plus size hashes for order-book ladders.
//
// Key schema (before prefixing):
//
//	pair:{symbol}            - hash: price, change, volume, decimals
//	book:{symbol}:asks       - sorted set of ask prices (score = price)
//	book:{symbol}:bids       - sorted set of bid prices (score = price)
//	book:{symbol}:ask:size   - hash mapping price -> amount for asks
//	book:{symbol}:bid:size   - hash mapping price -> amount for bids
//	book:{symbol}:meta       - hash with "ts" (snapshot timestamp, unix nanos)
//
// Prices are stored as exact decimal strings; the float score only orders
// the ladder.
type SnapshotCache struct {
	rdb *redis.Client
	key func(string) string
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying(), key: c.Key}
}

func (sc *SnapshotCache) pairKey(sym string) string     { return sc.key("pair:" + sym) }
func (sc *SnapshotCache) asksKey(sym string) string     { return sc.key("book:" + sym + ":asks") }
func (sc *SnapshotCache) bidsKey(sym string) string     { return sc.key("book:" + sym + ":bids") }
func (sc *SnapshotCache) askSizeKey(sym string) string  { return sc.key("book:" + sym + ":ask:size") }
func (sc *SnapshotCache) bidSizeKey(sym string) string  { return sc.key("book:" + sym + ":bid:size") }
func (sc *SnapshotCache) bookMetaKey(sym string) string { return sc.key("book:" + sym + ":meta") }

// SetPair stores a pair snapshot for ttl.
func (sc *SnapshotCache) SetPair(ctx context.Context, pair domain.TradingPair, ttl time.Duration) error {
	key := sc.pairKey(pair.Symbol)
	pipe := sc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"price", pair.Price.String(),
		"change", pair.Change.String(),
		"volume", pair.Volume,
		"decimals", strconv.Itoa(int(pair.Decimals)),
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set pair %s: %w", pair.Symbol, err)
	}
	return nil
}

// GetPair loads a pair snapshot. It returns domain.ErrNotFound when absent
// or expired.
func (sc *SnapshotCache) GetPair(ctx context.Context, symbol string) (domain.TradingPair, error) {
	vals, err := sc.rdb.HGetAll(ctx, sc.pairKey(symbol)).Result()
	if err != nil {
		return domain.TradingPair{}, fmt.Errorf("redis: get pair %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.TradingPair{}, domain.ErrNotFound
	}
	return decodePair(symbol, vals)
}

func decodePair(symbol string, vals map[string]string) (domain.TradingPair, error) {
	price, err := decimal.NewFromString(vals["price"])
	if err != nil {
		return domain.TradingPair{}, fmt.Errorf("redis: decode pair %s price: %w", symbol, err)
	}
	change, err := decimal.NewFromString(vals["change"])
	if err != nil {
		return domain.TradingPair{}, fmt.Errorf("redis: decode pair %s change: %w", symbol, err)
	}
	dec, err := strconv.ParseInt(vals["decimals"], 10, 32)
	if err != nil {
		return domain.TradingPair{}, fmt.Errorf("redis: decode pair %s decimals: %w", symbol, err)
	}
	return domain.TradingPair{
		Symbol:   symbol,
		Price:    price,
		Change:   change,
		Volume:   vals["volume"],
		Decimals: int32(dec),
	}, nil
}

// SetBook atomically replaces the order-book snapshot of a pair.
func (sc *SnapshotCache) SetBook(ctx context.Context, snap domain.OrderBookSnapshot, ttl time.Duration) error {
	sym := snap.Pair
	asksKey, bidsKey := sc.asksKey(sym), sc.bidsKey(sym)
	askSizeKey, bidSizeKey := sc.askSizeKey(sym), sc.bidSizeKey(sym)
	metaKey := sc.bookMetaKey(sym)
	keys := []string{asksKey, bidsKey, askSizeKey, bidSizeKey, metaKey}

	pipe := sc.rdb.TxPipeline()
	pipe.Del(ctx, keys...)

	for _, lvl := range snap.Asks {
		price := lvl.Price.String()
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: lvl.Price.InexactFloat64(), Member: price})
		pipe.HSet(ctx, askSizeKey, price, lvl.Amount.String())
	}
	for _, lvl := range snap.Bids {
		price := lvl.Price.String()
		pipe.ZAdd(ctx, bidsKey, redis.Z{Score: lvl.Price.InexactFloat64(), Member: price})
		pipe.HSet(ctx, bidSizeKey, price, lvl.Amount.String())
	}
	pipe.HSet(ctx, metaKey, "ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10))

	for _, k := range keys {
		pipe.Expire(ctx, k, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book %s: %w", sym, err)
	}
	return nil
}

// GetBook reconstructs an order-book snapshot. It returns domain.ErrNotFound
// when no snapshot is cached.
func (sc *SnapshotCache) GetBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	pipe := sc.rdb.Pipeline()
	asksCmd := pipe.ZRangeWithScores(ctx, sc.asksKey(symbol), 0, -1)
	bidsCmd := pipe.ZRevRangeWithScores(ctx, sc.bidsKey(symbol), 0, -1)
	askSizeCmd := pipe.HGetAll(ctx, sc.askSizeKey(symbol))
	bidSizeCmd := pipe.HGetAll(ctx, sc.bidSizeKey(symbol))
	metaCmd := pipe.HGetAll(ctx, sc.bookMetaKey(symbol))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get book %s: %w", symbol, err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}

	snap := domain.OrderBookSnapshot{Pair: symbol}
	if ts, err := strconv.ParseInt(meta["ts"], 10, 64); err == nil {
		snap.Timestamp = time.Unix(0, ts)
	}

	askSizes, _ := askSizeCmd.Result()
	asksZ, _ := asksCmd.Result()
	snap.Asks = decodeLevels(asksZ, askSizes)

	bidSizes, _ := bidSizeCmd.Result()
	bidsZ, _ := bidsCmd.Result()
	snap.Bids = decodeLevels(bidsZ, bidSizes)

	return snap, nil
}

func decodeLevels(zs []redis.Z, sizes map[string]string) []domain.OrderBookLevel {
	out := make([]domain.OrderBookLevel, 0, len(zs))
	for _, z := range zs {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(sizes[priceStr])
		if err != nil {
			amount = decimal.Zero
		}
		out = append(out, domain.OrderBookLevel{Price: price, Amount: amount})
	}
	return out
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)
