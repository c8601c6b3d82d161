package domain

import "context"

// MarketSnapshotProvider supplies pair metadata and order-book snapshots for
// the trading screen.
type MarketSnapshotProvider interface {
	// Pairs returns the tradable pairs in display order.
	Pairs(ctx context.Context) ([]TradingPair, error)
	// Pair returns the current snapshot of one pair. Unknown symbols yield
	// ErrUnknownPair.
	Pair(ctx context.Context, symbol string) (TradingPair, error)
	// OrderBook returns the current order-book snapshot of one pair.
	OrderBook(ctx context.Context, symbol string) (OrderBookSnapshot, error)
	// MarketTrades returns the most recent public prints of one pair, newest
	// first.
	MarketTrades(ctx context.Context, symbol string) ([]MarketTrade, error)
}
