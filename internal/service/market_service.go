package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// MarketService serves the pair catalogue, order books and trade history,
// and periodically publishes book snapshots to market channels.
type MarketService struct {
	markets domain.MarketSnapshotProvider
	trades  domain.TradeStore // optional
	pub     publisher
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. trades may be nil, in which
// case trade history reports domain.ErrUnavailable.
func NewMarketService(
	markets domain.MarketSnapshotProvider,
	trades domain.TradeStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	logger = logger.With(slog.String("component", "market_service"))
	return &MarketService{
		markets: markets,
		trades:  trades,
		pub:     publisher{bus: bus, logger: logger, now: time.Now},
		logger:  logger,
	}
}

// Pairs lists the catalogue in display order.
func (s *MarketService) Pairs(ctx context.Context) ([]domain.TradingPair, error) {
	pairs, err := s.markets.Pairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: pairs: %w", err)
	}
	return pairs, nil
}

// Pair returns one pair.
func (s *MarketService) Pair(ctx context.Context, symbol string) (domain.TradingPair, error) {
	pair, err := s.markets.Pair(ctx, symbol)
	if err != nil {
		return domain.TradingPair{}, fmt.Errorf("market_service: pair %s: %w", symbol, err)
	}
	return pair, nil
}

// OrderBook returns the current book of one pair.
func (s *MarketService) OrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	book, err := s.markets.OrderBook(ctx, symbol)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("market_service: book %s: %w", symbol, err)
	}
	return book, nil
}

// MarketTrades returns the public trade tape of one pair.
func (s *MarketService) MarketTrades(ctx context.Context, symbol string) ([]domain.MarketTrade, error) {
	tape, err := s.markets.MarketTrades(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("market_service: market trades %s: %w", symbol, err)
	}
	return tape, nil
}

// TradeHistory lists persisted executed trades, newest first. An empty
// symbol lists every pair.
func (s *MarketService) TradeHistory(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.ExecutedTrade, error) {
	if s.trades == nil {
		return nil, fmt.Errorf("market_service: trade history: %w", domain.ErrUnavailable)
	}
	pair := ""
	if symbol != "" {
		p, err := s.markets.Pair(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("market_service: trade history %s: %w", symbol, err)
		}
		pair = p.Symbol
	}
	trades, err := s.trades.ListByPair(ctx, pair, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: trade history: %w", err)
	}
	return trades, nil
}

// SessionHistory lists persisted trades of one session, newest first. Unlike
// the in-memory log it survives the session.
func (s *MarketService) SessionHistory(ctx context.Context, sessionID string, opts domain.ListOpts) ([]domain.ExecutedTrade, error) {
	if s.trades == nil {
		return nil, fmt.Errorf("market_service: session history: %w", domain.ErrUnavailable)
	}
	trades, err := s.trades.ListBySession(ctx, sessionID, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: session history %s: %w", sessionID, err)
	}
	return trades, nil
}

// PublishBooks publishes the current book of every pair to its market
// channel and returns the number published.
func (s *MarketService) PublishBooks(ctx context.Context) (int, error) {
	pairs, err := s.markets.Pairs(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: publish books: %w", err)
	}
	n := 0
	for _, p := range pairs {
		book, err := s.markets.OrderBook(ctx, p.Symbol)
		if err != nil {
			s.logger.WarnContext(ctx, "book snapshot failed",
				slog.String("pair", p.Symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.pub.publish(ctx, domain.MarketChannel(p.Symbol), Event{Type: EventBookSnapshot, Pair: p.Symbol, Data: book})
		n++
	}
	return n, nil
}

// Run publishes book snapshots every interval until ctx is cancelled.
func (s *MarketService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.PublishBooks(ctx); err != nil {
				s.logger.WarnContext(ctx, "publish books failed", slog.String("error", err.Error()))
			}
		}
	}
}
