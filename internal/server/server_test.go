package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/cache/memory"
	"github.com/alanyoungcy/tradedesk/internal/market"
	"github.com/alanyoungcy/tradedesk/internal/quote"
	"github.com/alanyoungcy/tradedesk/internal/server/handler"
	"github.com/alanyoungcy/tradedesk/internal/service"
)

func newTestHandler(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	markets, err := market.NewStaticProvider(nil)
	if err != nil {
		t.Fatal(err)
	}
	bus := memory.NewSignalBus()
	limiter := memory.NewRateLimiter()
	sessions := service.NewSessionService(service.SessionConfig{DefaultPair: "BTC/USDT"}, markets, nil, nil, bus, limiter, nil, logger)
	ms := service.NewMarketService(markets, nil, bus, logger)
	handlers := Handlers{
		Health:   handler.NewHealthHandler("server", sessions.Count, nil, logger),
		Markets:  handler.NewMarketHandler(ms, logger),
		Sessions: handler.NewSessionHandler(sessions, logger),
		Orders:   handler.NewOrderHandler(sessions, logger),
		Quotes:   handler.NewQuoteHandler(quote.NewCalculator(markets, nil), logger),
	}
	return NewHandler(cfg, handlers, nil, limiter, logger)
}

func TestRoutesAndAuth(t *testing.T) {
	h := newTestHandler(t, Config{APIKey: "k"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create: %d", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader(`{"pair":"ADA/USDT"}`))
	req.Header.Set("X-API-Key", "k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Draft struct {
				Price string `json:"price"`
			} `json:"draft"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Data.Draft.Price != "0.4521" {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestOptionalRoutesAbsent(t *testing.T) {
	h := newTestHandler(t, Config{})
	for _, path := range []string{"/api/trades", "/api/archives", "/ws"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: %d, want 404", path, rec.Code)
		}
	}
}

func TestServerRateLimit(t *testing.T) {
	h := newTestHandler(t, Config{RateLimit: 1, RateWindow: time.Minute})
	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/markets", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
