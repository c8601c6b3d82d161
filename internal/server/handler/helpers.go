package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/quote"
)

const maxBodyBytes = 64 << 10

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeJSON marshals v as JSON and writes it with the given status. If
// marshaling fails it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false,"message":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// statusFor maps domain errors to HTTP status codes and client messages.
// Unmapped errors are internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrUnknownPair):
		return http.StatusNotFound, "unknown pair"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "Invalid Amount"
	case errors.Is(err, domain.ErrInvalidPrice):
		return http.StatusUnprocessableEntity, "Invalid Price"
	case errors.Is(err, domain.ErrInvalidSide):
		return http.StatusBadRequest, "invalid side"
	case errors.Is(err, domain.ErrPairMismatch):
		return http.StatusConflict, "pair is not the active pair"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, domain.ErrSessionLimit):
		return http.StatusServiceUnavailable, "session limit reached"
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, "already running"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusNotImplemented, "not configured"
	case errors.Is(err, quote.ErrInvalidSpend):
		return http.StatusUnprocessableEntity, "invalid spend"
	case errors.Is(err, quote.ErrUnknownMethod):
		return http.StatusBadRequest, "unknown payment method"
	case errors.Is(err, quote.ErrUnknownAsset):
		return http.StatusNotFound, "unknown asset"
	default:
		return http.StatusInternalServerError, ""
	}
}

// writeServiceError writes err as an envelope. Internal errors are logged
// and reported with fallback as the message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), fallback, slog.String("error", err.Error()))
		msg = fallback
	}
	writeError(w, status, msg)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// parseListOpts extracts pagination and time-range parameters.
// Defaults: limit=50 (max 500), offset=0. since/until are RFC 3339.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{Limit: limit, Offset: offset}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		opts.Until = &t
	}
	return opts
}

// pairParam joins the {base} and {quote} path segments into a symbol.
func pairParam(r *http.Request) string {
	return domain.NormalizeSymbol(r.PathValue("base") + "/" + r.PathValue("quote"))
}
