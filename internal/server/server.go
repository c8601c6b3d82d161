// Package server exposes the order-entry desk over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/server/handler"
	"github.com/alanyoungcy/tradedesk/internal/server/middleware"
	"github.com/alanyoungcy/tradedesk/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
	// RateLimit requests per RateWindow per client IP; zero disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers. Trades and Archives are optional
// and their routes are only registered when set.
type Handlers struct {
	Health   *handler.HealthHandler
	Markets  *handler.MarketHandler
	Sessions *handler.SessionHandler
	Orders   *handler.OrderHandler
	Quotes   *handler.QuoteHandler
	Trades   *handler.TradeHandler
	Archives *handler.ArchiveHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in middleware.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, hub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListPairs)
	mux.HandleFunc("GET /api/markets/{base}/{quote}", handlers.Markets.GetPair)
	mux.HandleFunc("GET /api/markets/{base}/{quote}/book", handlers.Markets.GetBook)
	mux.HandleFunc("GET /api/markets/{base}/{quote}/trades", handlers.Markets.GetTrades)

	mux.HandleFunc("POST /api/sessions", handlers.Sessions.Create)
	mux.HandleFunc("GET /api/sessions/{id}", handlers.Sessions.Get)
	mux.HandleFunc("DELETE /api/sessions/{id}", handlers.Sessions.Close)
	mux.HandleFunc("PUT /api/sessions/{id}/pair", handlers.Sessions.SelectPair)
	mux.HandleFunc("PUT /api/sessions/{id}/draft", handlers.Sessions.UpdateDraft)
	mux.HandleFunc("POST /api/sessions/{id}/book-click", handlers.Sessions.BookClick)
	mux.HandleFunc("POST /api/sessions/{id}/orders", handlers.Sessions.PlaceOrder)
	mux.HandleFunc("GET /api/sessions/{id}/trades", handlers.Sessions.Trades)
	mux.HandleFunc("POST /api/orders", handlers.Orders.PlaceOrder)

	mux.HandleFunc("POST /api/quotes", handlers.Quotes.Quote)
	mux.HandleFunc("GET /api/quotes/methods", handlers.Quotes.Methods)

	if handlers.Trades != nil {
		mux.HandleFunc("GET /api/trades", handlers.Trades.List)
		mux.HandleFunc("GET /api/sessions/{id}/history", handlers.Trades.ListSession)
	}
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.List)
		mux.HandleFunc("GET /api/archives/{path...}", handlers.Archives.Get)
		mux.HandleFunc("POST /api/archives/run", handlers.Archives.Run)
	}

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
