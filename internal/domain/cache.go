package domain

import (
	"context"
	"time"
)

// SnapshotCache stores pair and order-book snapshots for fast reads.
type SnapshotCache interface {
	SetPair(ctx context.Context, pair TradingPair, ttl time.Duration) error
	GetPair(ctx context.Context, symbol string) (TradingPair, error)
	SetBook(ctx context.Context, snap OrderBookSnapshot, ttl time.Duration) error
	GetBook(ctx context.Context, symbol string) (OrderBookSnapshot, error)
}

// RateLimiter provides rate limiting keyed by an arbitrary string.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub for session and market events. Channel names
// may be glob patterns on Subscribe ("ch:session:*").
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
}

// Message is one payload delivered on a subscribed channel. Channel is the
// concrete channel the payload was published to, which differs from the
// subscription when a pattern was used.
type Message struct {
	Channel string
	Payload []byte
}

// Channel names used on the SignalBus.
const (
	SessionChannelPrefix = "ch:session:"
	MarketChannelPrefix  = "ch:market:"
)

// SessionChannel returns the bus channel carrying events of one session.
func SessionChannel(sessionID string) string {
	return SessionChannelPrefix + sessionID
}

// MarketChannel returns the bus channel carrying events of one pair.
func MarketChannel(symbol string) string {
	return MarketChannelPrefix + symbol
}

// LockManager provides mutual exclusion across instances.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
