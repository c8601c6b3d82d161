package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradedesk/internal/quote"
)

// QuoteService prices buy-crypto requests.
type QuoteService interface {
	Quote(ctx context.Context, req quote.Request) (quote.Quote, error)
	Methods() []quote.PaymentMethod
}

// QuoteHandler serves the buy-crypto calculator.
type QuoteHandler struct {
	quotes QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(quotes QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, logger: logger}
}

// Quote prices a spend.
// POST /api/quotes {"asset":"BTC","spend":"1000","method":"card"}
func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quote.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	q, err := h.quotes.Quote(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to price quote")
		return
	}
	writeData(w, http.StatusOK, q)
}

// Methods lists payment methods.
// GET /api/quotes/methods
func (h *QuoteHandler) Methods(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.quotes.Methods())
}
