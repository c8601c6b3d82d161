package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBookLevel is a single price+amount entry in an order book ladder.
type OrderBookLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBookSnapshot is a full snapshot of both ladders for a pair. Asks are
// ordered ascending from the best (lowest) ask, bids descending from the best
// (highest) bid. Snapshots are replaced, never mutated in place.
type OrderBookSnapshot struct {
	Pair      string
	Asks      []OrderBookLevel
	Bids      []OrderBookLevel
	Timestamp time.Time
}

// BestAsk returns the lowest ask, or false when the ask ladder is empty.
func (s OrderBookSnapshot) BestAsk() (OrderBookLevel, bool) {
	if len(s.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return s.Asks[0], true
}

// BestBid returns the highest bid, or false when the bid ladder is empty.
func (s OrderBookSnapshot) BestBid() (OrderBookLevel, bool) {
	if len(s.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return s.Bids[0], true
}

// Spread returns best ask minus best bid. It is zero when either side is empty.
func (s OrderBookSnapshot) Spread() decimal.Decimal {
	ask, okAsk := s.BestAsk()
	bid, okBid := s.BestBid()
	if !okAsk || !okBid {
		return decimal.Zero
	}
	return ask.Price.Sub(bid.Price)
}

// Level returns the i-th level of the ladder on the given side: asks for
// SideSell, bids for SideBuy.
func (s OrderBookSnapshot) Level(side Side, i int) (OrderBookLevel, bool) {
	ladder := s.Bids
	if side == SideSell {
		ladder = s.Asks
	}
	if i < 0 || i >= len(ladder) {
		return OrderBookLevel{}, false
	}
	return ladder[i], true
}

// Clone returns a deep copy so that callers cannot mutate a shared snapshot.
func (s OrderBookSnapshot) Clone() OrderBookSnapshot {
	out := s
	out.Asks = append([]OrderBookLevel(nil), s.Asks...)
	out.Bids = append([]OrderBookLevel(nil), s.Bids...)
	return out
}

// MarketTrade is a print on the public trade tape of a pair. It is market
// data, distinct from the trades a session executes itself.
type MarketTrade struct {
	Pair   string
	Price  decimal.Decimal
	Amount decimal.Decimal
	Side   Side
	Time   string // wall-clock "15:04:05"
}
