package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// TradeHistory is the persisted trade history the trade handler reads.
type TradeHistory interface {
	TradeHistory(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.ExecutedTrade, error)
	SessionHistory(ctx context.Context, sessionID string, opts domain.ListOpts) ([]domain.ExecutedTrade, error)
}

// TradeHandler serves persisted trade history.
type TradeHandler struct {
	history TradeHistory
	logger  *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(history TradeHistory, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{history: history, logger: logger}
}

type tradeListResponse struct {
	Trades []domain.ExecutedTrade `json:"trades"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// List returns executed trades across sessions, optionally for one pair.
// GET /api/trades?pair=BTC/USDT&limit=50&offset=0&since=...&until=...
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	trades, err := h.history.TradeHistory(r.Context(), r.URL.Query().Get("pair"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list trades")
		return
	}
	h.write(w, trades, opts)
}

// ListSession returns the persisted trades of one session.
// GET /api/sessions/{id}/history
func (h *TradeHandler) ListSession(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	trades, err := h.history.SessionHistory(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list session history")
		return
	}
	h.write(w, trades, opts)
}

func (h *TradeHandler) write(w http.ResponseWriter, trades []domain.ExecutedTrade, opts domain.ListOpts) {
	if trades == nil {
		trades = []domain.ExecutedTrade{}
	}
	writeData(w, http.StatusOK, tradeListResponse{Trades: trades, Limit: opts.Limit, Offset: opts.Offset})
}
