package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// SessionHeader names the session a bare order request targets.
const SessionHeader = "X-Session-ID"

// OrderHandler accepts place-order requests that name the pair explicitly.
type OrderHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(sessions SessionService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{sessions: sessions, logger: logger}
}

// PlaceOrder applies the request to the session named by the X-Session-ID
// header and places it. An empty price keeps the session's draft price.
// POST /api/orders {"pair":"BTC/USDT","side":"buy","price":"64231.50","amount":"0.5"}
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		writeError(w, http.StatusBadRequest, SessionHeader+" header is required")
		return
	}
	var req domain.PlaceOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Pair == "" || req.Side == "" {
		writeError(w, http.StatusBadRequest, "pair and side are required")
		return
	}
	res, err := h.sessions.Submit(r.Context(), id, req)
	writePlaceResult(w, r, h.logger, res, err)
}
