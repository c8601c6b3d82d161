package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/service"
	"github.com/alanyoungcy/tradedesk/internal/session"
)

// SessionService is what the session handler needs from the service layer.
type SessionService interface {
	Create(ctx context.Context, symbol string) (session.View, error)
	View(ctx context.Context, id string) (session.View, error)
	Close(ctx context.Context, id string) error
	SelectPair(ctx context.Context, id, symbol string) (session.View, error)
	UpdateDraft(ctx context.Context, id string, u service.DraftUpdate) (session.View, error)
	ClickBookLevel(ctx context.Context, id string, c service.BookClick) (session.View, error)
	PlaceOrder(ctx context.Context, id string) (domain.PlaceOrderResult, error)
	Submit(ctx context.Context, id string, req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error)
	Trades(ctx context.Context, id string) ([]domain.ExecutedTrade, error)
}

// SessionHandler serves the order-entry session endpoints.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type createSessionRequest struct {
	Pair string `json:"pair"`
}

type selectPairRequest struct {
	Pair string `json:"pair"`
}

// Create opens a session, optionally on a given pair.
// POST /api/sessions {"pair":"ETH/USDT"}
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	view, err := h.sessions.Create(r.Context(), req.Pair)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create session")
		return
	}
	writeData(w, http.StatusCreated, view)
}

// Get returns the session view.
// GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.View(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get session")
		return
	}
	writeData(w, http.StatusOK, view)
}

// Close ends a session.
// DELETE /api/sessions/{id}
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.Close(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to close session")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id, "status": "closed"})
}

// SelectPair switches the active pair.
// PUT /api/sessions/{id}/pair {"pair":"SOL/USDT"}
func (h *SessionHandler) SelectPair(w http.ResponseWriter, r *http.Request) {
	var req selectPairRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Pair == "" {
		writeError(w, http.StatusBadRequest, "pair is required")
		return
	}
	view, err := h.sessions.SelectPair(r.Context(), r.PathValue("id"), req.Pair)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to select pair")
		return
	}
	writeData(w, http.StatusOK, view)
}

// UpdateDraft applies a partial draft update.
// PUT /api/sessions/{id}/draft {"price":"64000","amount":"0.5","side":"sell"}
func (h *SessionHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req service.DraftUpdate
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	view, err := h.sessions.UpdateDraft(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to update draft")
		return
	}
	writeData(w, http.StatusOK, view)
}

// BookClick copies an order-book level's price into the draft.
// POST /api/sessions/{id}/book-click {"side":"sell","index":0} or {"price":"64232"}
func (h *SessionHandler) BookClick(w http.ResponseWriter, r *http.Request) {
	var req service.BookClick
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	view, err := h.sessions.ClickBookLevel(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to select book level")
		return
	}
	writeData(w, http.StatusOK, view)
}

// PlaceOrder places the session's current draft.
// POST /api/sessions/{id}/orders
func (h *SessionHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.PlaceOrder(r.Context(), r.PathValue("id"))
	writePlaceResult(w, r, h.logger, res, err)
}

// Trades returns the session's executed-trade log, newest first.
// GET /api/sessions/{id}/trades
func (h *SessionHandler) Trades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.sessions.Trades(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.ExecutedTrade{}
	}
	writeData(w, http.StatusOK, trades)
}

// writePlaceResult reports a place-order outcome. Validation rejections
// still carry the result, so clients can show the notification.
func writePlaceResult(w http.ResponseWriter, r *http.Request, logger *slog.Logger, res domain.PlaceOrderResult, err error) {
	if err == nil {
		writeData(w, http.StatusCreated, res)
		return
	}
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "place order failed", slog.String("error", err.Error()))
		writeError(w, status, "failed to place order")
		return
	}
	if res.Reason != "" {
		msg = res.Reason
	}
	writeJSON(w, status, envelope{Success: false, Data: res, Message: msg})
}
