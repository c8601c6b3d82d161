package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// MarketService is what the market handler needs from the service layer.
type MarketService interface {
	Pairs(ctx context.Context) ([]domain.TradingPair, error)
	Pair(ctx context.Context, symbol string) (domain.TradingPair, error)
	OrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error)
	MarketTrades(ctx context.Context, symbol string) ([]domain.MarketTrade, error)
}

// MarketHandler serves the pair catalogue and market data.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// ListPairs returns every tradable pair in display order.
// GET /api/markets
func (h *MarketHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.markets.Pairs(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list pairs")
		return
	}
	if pairs == nil {
		pairs = []domain.TradingPair{}
	}
	writeData(w, http.StatusOK, pairs)
}

// GetPair returns one pair.
// GET /api/markets/{base}/{quote}
func (h *MarketHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	pair, err := h.markets.Pair(r.Context(), pairParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get pair")
		return
	}
	writeData(w, http.StatusOK, pair)
}

// GetBook returns the order book of one pair.
// GET /api/markets/{base}/{quote}/book
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.markets.OrderBook(r.Context(), pairParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get order book")
		return
	}
	writeData(w, http.StatusOK, book)
}

// GetTrades returns the public trade tape of one pair.
// GET /api/markets/{base}/{quote}/trades
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	tape, err := h.markets.MarketTrades(r.Context(), pairParam(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get market trades")
		return
	}
	if tape == nil {
		tape = []domain.MarketTrade{}
	}
	writeData(w, http.StatusOK, tape)
}
