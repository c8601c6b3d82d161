package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/tradedesk/internal/cache/memory"
	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/market"
	"github.com/alanyoungcy/tradedesk/internal/quote"
	"github.com/alanyoungcy/tradedesk/internal/service"
)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	markets, err := market.NewStaticProvider(nil)
	if err != nil {
		t.Fatal(err)
	}
	logger := testLogger()
	sessions := service.NewSessionService(service.SessionConfig{DefaultPair: "BTC/USDT"},
		markets, nil, nil, memory.NewSignalBus(), memory.NewRateLimiter(), nil, logger)
	ms := service.NewMarketService(markets, nil, nil, logger)

	sh := NewSessionHandler(sessions, logger)
	mh := NewMarketHandler(ms, logger)
	oh := NewOrderHandler(sessions, logger)
	th := NewTradeHandler(ms, logger)
	qh := NewQuoteHandler(quote.NewCalculator(markets, nil), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", mh.ListPairs)
	mux.HandleFunc("GET /api/markets/{base}/{quote}", mh.GetPair)
	mux.HandleFunc("GET /api/markets/{base}/{quote}/book", mh.GetBook)
	mux.HandleFunc("GET /api/markets/{base}/{quote}/trades", mh.GetTrades)
	mux.HandleFunc("POST /api/sessions", sh.Create)
	mux.HandleFunc("GET /api/sessions/{id}", sh.Get)
	mux.HandleFunc("DELETE /api/sessions/{id}", sh.Close)
	mux.HandleFunc("PUT /api/sessions/{id}/pair", sh.SelectPair)
	mux.HandleFunc("PUT /api/sessions/{id}/draft", sh.UpdateDraft)
	mux.HandleFunc("POST /api/sessions/{id}/book-click", sh.BookClick)
	mux.HandleFunc("POST /api/sessions/{id}/orders", sh.PlaceOrder)
	mux.HandleFunc("GET /api/sessions/{id}/trades", sh.Trades)
	mux.HandleFunc("POST /api/orders", oh.PlaceOrder)
	mux.HandleFunc("GET /api/trades", th.List)
	mux.HandleFunc("POST /api/quotes", qh.Quote)
	mux.HandleFunc("GET /api/quotes/methods", qh.Methods)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, resp
}

type sessionBody struct {
	ID    string `json:"id"`
	Pair  struct {
		Pair string `json:"pair"`
	} `json:"pair"`
	Draft struct {
		Side   string `json:"side"`
		Price  string `json:"price"`
		Amount string `json:"amount"`
	} `json:"draft"`
	Trades []struct {
		Price  json.Number `json:"price"`
		Amount json.Number `json:"amount"`
		Side   string      `json:"side"`
	} `json:"trades"`
	OrderTotal json.Number `json:"order_total"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func TestMarketsEndpoints(t *testing.T) {
	mux := newMux(t)

	code, resp := do(t, mux, "GET", "/api/markets", "")
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("list: %d %+v", code, resp)
	}
	pairs := decode[[]map[string]any](t, resp.Data)
	if len(pairs) != 6 || pairs[0]["pair"] != "BTC/USDT" {
		t.Fatalf("pairs = %v", pairs)
	}

	code, resp = do(t, mux, "GET", "/api/markets/btc/usdt/book", "")
	if code != http.StatusOK {
		t.Fatalf("book: %d %+v", code, resp)
	}
	if !strings.Contains(string(resp.Data), `"price":64235.5,`) {
		t.Fatalf("book = %s", resp.Data)
	}

	code, resp = do(t, mux, "GET", "/api/markets/DOGE/USDT", "")
	if code != http.StatusNotFound || resp.Success {
		t.Fatalf("unknown pair: %d %+v", code, resp)
	}

	code, resp = do(t, mux, "GET", "/api/markets/ETH/USDT/trades", "")
	if code != http.StatusOK || len(decode[[]map[string]any](t, resp.Data)) != 5 {
		t.Fatalf("tape: %d %s", code, resp.Data)
	}
}

func TestSessionOrderScenario(t *testing.T) {
	mux := newMux(t)

	code, resp := do(t, mux, "POST", "/api/sessions", "")
	if code != http.StatusCreated {
		t.Fatalf("create: %d %+v", code, resp)
	}
	s := decode[sessionBody](t, resp.Data)
	base := "/api/sessions/" + s.ID

	code, resp = do(t, mux, "POST", base+"/book-click", `{"side":"sell","index":4}`)
	if code != http.StatusOK {
		t.Fatalf("click: %d %+v", code, resp)
	}
	if got := decode[sessionBody](t, resp.Data).Draft.Price; got != "64235.50" {
		t.Fatalf("draft price = %q", got)
	}

	do(t, mux, "PUT", base+"/draft", `{"amount":"0.5"}`)
	code, resp = do(t, mux, "POST", base+"/orders", "")
	if code != http.StatusCreated || !resp.Success {
		t.Fatalf("place: %d %+v", code, resp)
	}
	if !strings.Contains(string(resp.Data), `"message":"Order Placed: BUY 0.5 BTC @ 64235.50"`) {
		t.Fatalf("result = %s", resp.Data)
	}

	_, resp = do(t, mux, "GET", base, "")
	view := decode[sessionBody](t, resp.Data)
	if view.Draft.Amount != "" || len(view.Trades) != 1 || view.Trades[0].Price.String() != "64235.5" {
		t.Fatalf("view = %+v", view)
	}

	code, resp = do(t, mux, "GET", base+"/trades", "")
	if code != http.StatusOK || len(decode[[]map[string]any](t, resp.Data)) != 1 {
		t.Fatalf("trades: %d %s", code, resp.Data)
	}
}

func TestPlaceOrderRejections(t *testing.T) {
	mux := newMux(t)
	_, resp := do(t, mux, "POST", "/api/sessions", `{"pair":"SOL/USDT"}`)
	id := decode[sessionBody](t, resp.Data).ID
	base := "/api/sessions/" + id

	do(t, mux, "PUT", base+"/draft", `{"amount":"0"}`)
	code, resp := do(t, mux, "POST", base+"/orders", "")
	if code != http.StatusUnprocessableEntity || resp.Success || resp.Message != "Invalid Amount" {
		t.Fatalf("zero amount: %d %+v", code, resp)
	}
	if !strings.Contains(string(resp.Data), `"accepted":false`) {
		t.Fatalf("data = %s", resp.Data)
	}

	do(t, mux, "PUT", base+"/draft", `{"amount":"1e50000000"}`)
	code, resp = do(t, mux, "POST", base+"/orders", "")
	if code != http.StatusUnprocessableEntity || resp.Message != "Invalid Amount" {
		t.Fatalf("exponent amount: %d %+v", code, resp)
	}

	do(t, mux, "PUT", base+"/draft", `{"amount":"1","price":"abc"}`)
	code, resp = do(t, mux, "POST", base+"/orders", "")
	if code != http.StatusCreated || !strings.Contains(string(resp.Data), `"price":0,`) {
		t.Fatalf("free-text price should fill at 0: %d %+v", code, resp)
	}

	code, _ = do(t, mux, "PUT", base+"/draft", `{"side":"short"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("bad side: %d", code)
	}

	code, _ = do(t, mux, "POST", "/api/sessions/missing/orders", "")
	if code != http.StatusNotFound {
		t.Fatalf("missing session: %d", code)
	}
}

func TestBareOrderRequest(t *testing.T) {
	mux := newMux(t)
	_, resp := do(t, mux, "POST", "/api/sessions", "")
	id := decode[sessionBody](t, resp.Data).ID

	code, _ := do(t, mux, "POST", "/api/orders", `{"pair":"BTC/USDT","side":"sell","amount":"1"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("missing header: %d", code)
	}
	code, resp = do(t, mux, "POST", "/api/orders", `{"pair":"ETH/USDT","side":"sell","amount":"1"}`, SessionHeader, id)
	if code != http.StatusConflict {
		t.Fatalf("mismatch: %d %+v", code, resp)
	}
	code, resp = do(t, mux, "POST", "/api/orders", `{"pair":"BTC/USDT","side":"sell","price":"abc","amount":"1"}`, SessionHeader, id)
	if code != http.StatusUnprocessableEntity || resp.Message != "Invalid Price" {
		t.Fatalf("bad price: %d %+v", code, resp)
	}
	code, resp = do(t, mux, "POST", "/api/orders", `{"pair":"BTC/USDT","side":"sell","price":"64000","amount":"1"}`, SessionHeader, id)
	if code != http.StatusCreated {
		t.Fatalf("place: %d %+v", code, resp)
	}
	if !strings.Contains(string(resp.Data), `"side":"sell"`) {
		t.Fatalf("result = %s", resp.Data)
	}
}

func TestTradesNotConfigured(t *testing.T) {
	mux := newMux(t)
	code, resp := do(t, mux, "GET", "/api/trades", "")
	if code != http.StatusNotImplemented || resp.Success {
		t.Fatalf("trades without store: %d %+v", code, resp)
	}
}

func TestQuoteEndpoints(t *testing.T) {
	mux := newMux(t)
	code, resp := do(t, mux, "POST", "/api/quotes", `{"asset":"BTC","spend":"1000","method":"card"}`)
	if code != http.StatusOK {
		t.Fatalf("quote: %d %+v", code, resp)
	}
	if !strings.Contains(string(resp.Data), `"receive":"0.015257"`) {
		t.Fatalf("quote = %s", resp.Data)
	}
	code, _ = do(t, mux, "POST", "/api/quotes", `{"asset":"BTC","spend":"-1","method":"card"}`)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("negative spend: %d", code)
	}
	code, resp = do(t, mux, "GET", "/api/quotes/methods", "")
	if code != http.StatusOK || len(decode[[]map[string]any](t, resp.Data)) != 3 {
		t.Fatalf("methods: %d %s", code, resp.Data)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler("server", func() int { return 3 }, map[string]Pinger{"redis": stubPinger{}}, testLogger())
	code, resp := do(t, http.HandlerFunc(h.HealthCheck), "GET", "/api/health", "")
	if code != http.StatusOK || !strings.Contains(string(resp.Data), `"sessions":3`) {
		t.Fatalf("healthy: %d %s", code, resp.Data)
	}

	h = NewHealthHandler("server", nil, map[string]Pinger{"postgres": stubPinger{errors.New("refused")}}, testLogger())
	code, resp = do(t, http.HandlerFunc(h.HealthCheck), "GET", "/api/health", "")
	if code != http.StatusServiceUnavailable || !strings.Contains(string(resp.Data), `"postgres":"down"`) {
		t.Fatalf("degraded: %d %s", code, resp.Data)
	}
}

func TestStatusForUnknownError(t *testing.T) {
	if code, _ := statusFor(errors.New("boom")); code != http.StatusInternalServerError {
		t.Fatalf("code = %d", code)
	}
	if code, _ := statusFor(domain.ErrRateLimited); code != http.StatusTooManyRequests {
		t.Fatalf("code = %d", code)
	}
}
