// Package market provides the MarketSnapshotProvider implementations that
// feed the trading screen: a static catalogue with generated ladders and a
// read-through cache in front of any provider.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// DefaultDepth is the number of levels generated on each side of a book.
const DefaultDepth = 5

// stepFactor converts a last price into a ladder tick. For BTC/USDT at
// 64231.50 it yields 0.50.
var stepFactor = decimal.RequireFromString("0.0000078")

// Ladder offsets in steps from the last price, and the resting amounts at
// each level. Asks start at the last price, bids one step below.
var (
	askOffsets = []int64{0, 1, 3, 4, 8}
	bidOffsets = []int64{1, 2, 5, 6, 13}
	askAmounts = []string{"2.5", "0.89", "0.05", "1.2", "0.4521"}
	bidAmounts = []string{"0.12", "0.5", "1.5", "0.33", "5"}
)

// tapePrint describes one synthetic print relative to the last price.
type tapePrint struct {
	mult   string
	amount string
	side   domain.Side
	ago    time.Duration
}

var tape = []tapePrint{
	{"1", "0.05", domain.SideBuy, 0},
	{"1.001", "0.12", domain.SideSell, 6 * time.Second},
	{"0.999", "0.55", domain.SideBuy, 21 * time.Second},
	{"1", "0.01", domain.SideBuy, 56 * time.Second},
	{"0.998", "1.25", domain.SideSell, 109 * time.Second},
}

// DefaultPairs returns the built-in pair catalogue in display order.
func DefaultPairs() []domain.TradingPair {
	p := func(sym, price, change, vol string, dec int32) domain.TradingPair {
		return domain.TradingPair{
			Symbol:   sym,
			Price:    decimal.RequireFromString(price),
			Change:   decimal.RequireFromString(change),
			Volume:   vol,
			Decimals: dec,
		}
	}
	return []domain.TradingPair{
		p("BTC/USDT", "64231.50", "2.45", "45.2B", 2),
		p("ETH/USDT", "3452.12", "-1.20", "18.5B", 2),
		p("SOL/USDT", "145.67", "5.67", "8.2B", 2),
		p("BNB/USDT", "590.23", "0.45", "2.1B", 2),
		p("XRP/USDT", "0.6234", "-0.89", "1.5B", 4),
		p("ADA/USDT", "0.4521", "1.12", "890M", 4),
	}
}

// Option configures a StaticProvider.
type Option func(*StaticProvider)

// WithDepth limits each generated ladder to n levels (1..5).
func WithDepth(n int) Option {
	return func(p *StaticProvider) {
		if n > 0 && n <= len(askOffsets) {
			p.depth = n
		}
	}
}

// WithNow overrides the time source used for snapshot and tape timestamps.
func WithNow(now func() time.Time) Option {
	return func(p *StaticProvider) { p.now = now }
}

// StaticProvider serves a fixed pair catalogue. Order books and the trade
// tape are derived deterministically from each pair's last price.
type StaticProvider struct {
	mu    sync.RWMutex
	order []string
	pairs map[string]domain.TradingPair
	depth int
	now   func() time.Time
}

// NewStaticProvider creates a provider over pairs. An empty slice selects
// DefaultPairs. Symbols are normalised; duplicates keep the first entry.
func NewStaticProvider(pairs []domain.TradingPair, opts ...Option) (*StaticProvider, error) {
	if len(pairs) == 0 {
		pairs = DefaultPairs()
	}
	p := &StaticProvider{
		pairs: make(map[string]domain.TradingPair, len(pairs)),
		depth: DefaultDepth,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, pair := range pairs {
		pair.Symbol = domain.NormalizeSymbol(pair.Symbol)
		if pair.Base() == "" || pair.Quote() == "" {
			return nil, fmt.Errorf("market: pair %q: symbol must be BASE/QUOTE", pair.Symbol)
		}
		if pair.Price.Sign() <= 0 {
			return nil, fmt.Errorf("market: pair %s: price must be positive", pair.Symbol)
		}
		if pair.Decimals < 0 {
			return nil, fmt.Errorf("market: pair %s: negative decimals", pair.Symbol)
		}
		if _, dup := p.pairs[pair.Symbol]; dup {
			continue
		}
		p.order = append(p.order, pair.Symbol)
		p.pairs[pair.Symbol] = pair
	}
	return p, nil
}

// Pairs returns the catalogue in display order.
func (p *StaticProvider) Pairs(_ context.Context) ([]domain.TradingPair, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.TradingPair, 0, len(p.order))
	for _, sym := range p.order {
		out = append(out, p.pairs[sym])
	}
	return out, nil
}

// Pair returns one pair by symbol.
func (p *StaticProvider) Pair(_ context.Context, symbol string) (domain.TradingPair, error) {
	return p.lookup(symbol)
}

// OrderBook returns the generated ladder of one pair.
func (p *StaticProvider) OrderBook(_ context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	pair, err := p.lookup(symbol)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	return BuildBook(pair, p.depth, p.now()), nil
}

// MarketTrades returns the synthetic trade tape of one pair, newest first.
func (p *StaticProvider) MarketTrades(_ context.Context, symbol string) ([]domain.MarketTrade, error) {
	pair, err := p.lookup(symbol)
	if err != nil {
		return nil, err
	}
	now := p.now()
	out := make([]domain.MarketTrade, 0, len(tape))
	for _, t := range tape {
		out = append(out, domain.MarketTrade{
			Pair:   pair.Symbol,
			Price:  pair.Price.Mul(decimal.RequireFromString(t.mult)).Round(pair.Decimals),
			Amount: decimal.RequireFromString(t.amount),
			Side:   t.side,
			Time:   now.Add(-t.ago).Format("15:04:05"),
		})
	}
	return out, nil
}

// SetPrice moves the last price of a pair. Subsequent books and tapes are
// generated around the new price.
func (p *StaticProvider) SetPrice(symbol string, price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("market: set price %s: %w", symbol, domain.ErrInvalidPrice)
	}
	sym := domain.NormalizeSymbol(symbol)
	p.mu.Lock()
	defer p.mu.Unlock()
	pair, ok := p.pairs[sym]
	if !ok {
		return fmt.Errorf("market: set price %s: %w", symbol, domain.ErrUnknownPair)
	}
	pair.Price = price
	p.pairs[sym] = pair
	return nil
}

func (p *StaticProvider) lookup(symbol string) (domain.TradingPair, error) {
	sym := domain.NormalizeSymbol(symbol)
	p.mu.RLock()
	pair, ok := p.pairs[sym]
	p.mu.RUnlock()
	if !ok {
		return domain.TradingPair{}, fmt.Errorf("market: pair %s: %w", symbol, domain.ErrUnknownPair)
	}
	return pair, nil
}

// Step returns the ladder tick for pair: the last price scaled by a fixed
// factor, rounded to the pair's precision, never below one unit of it.
func Step(pair domain.TradingPair) decimal.Decimal {
	tick := decimal.New(1, -pair.Decimals)
	step := pair.Price.Mul(stepFactor).Round(pair.Decimals)
	if step.LessThan(tick) {
		return tick
	}
	return step
}

// BuildBook generates depth levels per side around the pair's last price.
// Asks ascend from the best ask, bids descend from the best bid.
func BuildBook(pair domain.TradingPair, depth int, ts time.Time) domain.OrderBookSnapshot {
	if depth <= 0 || depth > len(askOffsets) {
		depth = DefaultDepth
	}
	step := Step(pair)
	snap := domain.OrderBookSnapshot{
		Pair:      pair.Symbol,
		Asks:      make([]domain.OrderBookLevel, 0, depth),
		Bids:      make([]domain.OrderBookLevel, 0, depth),
		Timestamp: ts,
	}
	for i := 0; i < depth; i++ {
		snap.Asks = append(snap.Asks, domain.OrderBookLevel{
			Price:  pair.Price.Add(step.Mul(decimal.NewFromInt(askOffsets[i]))),
			Amount: decimal.RequireFromString(askAmounts[i]),
		})
	}
	for i := 0; i < depth; i++ {
		bid := pair.Price.Sub(step.Mul(decimal.NewFromInt(bidOffsets[i])))
		if bid.Sign() <= 0 {
			break
		}
		snap.Bids = append(snap.Bids, domain.OrderBookLevel{
			Price:  bid,
			Amount: decimal.RequireFromString(bidAmounts[i]),
		})
	}
	return snap
}

var _ domain.MarketSnapshotProvider = (*StaticProvider)(nil)
