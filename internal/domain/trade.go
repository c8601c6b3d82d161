package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTradeLogSize is the number of executed trades a session keeps.
const DefaultTradeLogSize = 10

// ExecutedTrade is a synthetic fill recorded by a successful place-order.
type ExecutedTrade struct {
	ID         string
	SessionID  string
	Pair       string
	Side       Side
	Price      decimal.Decimal
	Amount     decimal.Decimal
	ExecutedAt time.Time
	Time       string // wall-clock "15:04:05", as displayed in the trade list
}

// Total returns price * amount.
func (t ExecutedTrade) Total() decimal.Decimal {
	return t.Price.Mul(t.Amount)
}

// TradeLog is an insertion-ordered, size-bounded log of executed trades.
// Entries are kept newest first; prepending beyond capacity evicts the oldest.
// The zero value has capacity DefaultTradeLogSize.
type TradeLog struct {
	entries []ExecutedTrade
	size    int
}

// NewTradeLog returns an empty log holding at most size trades. A
// non-positive size falls back to DefaultTradeLogSize.
func NewTradeLog(size int) *TradeLog {
	if size <= 0 {
		size = DefaultTradeLogSize
	}
	return &TradeLog{size: size, entries: make([]ExecutedTrade, 0, size)}
}

// Cap returns the maximum number of trades held.
func (l *TradeLog) Cap() int {
	if l.size <= 0 {
		return DefaultTradeLogSize
	}
	return l.size
}

// Len returns the number of trades held.
func (l *TradeLog) Len() int {
	return len(l.entries)
}

// Prepend inserts t as the newest entry and truncates to capacity.
func (l *TradeLog) Prepend(t ExecutedTrade) {
	next := make([]ExecutedTrade, 0, l.Cap())
	next = append(next, t)
	next = append(next, l.entries...)
	if len(next) > l.Cap() {
		next = next[:l.Cap()]
	}
	l.entries = next
}

// Entries returns a copy of the log, newest first.
func (l *TradeLog) Entries() []ExecutedTrade {
	out := make([]ExecutedTrade, len(l.entries))
	copy(out, l.entries)
	return out
}
