package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/notify"
	"github.com/alanyoungcy/tradedesk/internal/session"
)

// SessionConfig tunes the session registry.
type SessionConfig struct {
	TradeLogSize    int
	NotificationTTL time.Duration
	// IdleTTL closes sessions without user activity for this long. Zero
	// keeps sessions until closed explicitly.
	IdleTTL       time.Duration
	SweepInterval time.Duration
	// MaxSessions caps open sessions; zero means unlimited.
	MaxSessions int
	// OrderRateLimit orders per OrderRateWindow per session; zero disables.
	OrderRateLimit  int
	OrderRateWindow time.Duration
	DefaultPair     string
}

// DraftUpdate is a partial update of the draft order. Nil fields are left
// unchanged.
type DraftUpdate struct {
	Price  *string `json:"price"`
	Amount *string `json:"amount"`
	Side   *string `json:"side"`
}

// BookClick selects an order-book level either by explicit price or by
// ladder side and index ("sell" picks asks, "buy" picks bids).
type BookClick struct {
	Price string `json:"price"`
	Side  string `json:"side"`
	Index *int   `json:"index"`
}

// SessionService owns every open order-entry session and performs the side
// effects of user operations: persistence, events, audit and alerts.
type SessionService struct {
	cfg      SessionConfig
	markets  domain.MarketSnapshotProvider
	trades   domain.TradeStore // optional
	audit    domain.AuditStore // optional
	limiter  domain.RateLimiter
	notifier *notify.Notifier // optional
	clock    session.Clock
	pub      publisher
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Simulator
}

// NewSessionService creates a SessionService. trades, audit and notifier may
// be nil.
func NewSessionService(
	cfg SessionConfig,
	markets domain.MarketSnapshotProvider,
	trades domain.TradeStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	limiter domain.RateLimiter,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *SessionService {
	logger = logger.With(slog.String("component", "session_service"))
	s := &SessionService{
		cfg:      cfg,
		markets:  markets,
		trades:   trades,
		audit:    audit,
		limiter:  limiter,
		notifier: notifier,
		clock:    session.SystemClock{},
		logger:   logger,
		sessions: make(map[string]*session.Simulator),
	}
	s.pub = publisher{bus: bus, logger: logger, now: func() time.Time { return s.clock.Now() }}
	return s
}

// WithClock replaces the clock; used for deterministic expiry.
func (s *SessionService) WithClock(c session.Clock) *SessionService {
	s.clock = c
	return s
}

// Create opens a session on symbol, or on the default pair when symbol is
// empty.
func (s *SessionService) Create(ctx context.Context, symbol string) (session.View, error) {
	if symbol == "" {
		symbol = s.cfg.DefaultPair
	}
	pair, book, err := s.loadPair(ctx, symbol)
	if err != nil {
		return session.View{}, err
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return session.View{}, fmt.Errorf("session_service: create: %w", domain.ErrSessionLimit)
	}
	sim := session.New(session.Config{
		TradeLogSize:    s.cfg.TradeLogSize,
		NotificationTTL: s.cfg.NotificationTTL,
		Clock:           s.clock,
		OnDismiss:       s.onDismiss,
	}, pair, book)
	s.sessions[sim.ID()] = sim
	s.mu.Unlock()

	view := sim.View()
	s.pub.publish(ctx, domain.SessionChannel(view.ID), Event{Type: EventSessionCreated, SessionID: view.ID, Pair: pair.Symbol, Data: view})
	s.auditLog(ctx, "session_created", map[string]any{"session_id": view.ID, "pair": pair.Symbol})
	s.logger.InfoContext(ctx, "session created", slog.String("session_id", view.ID), slog.String("pair", pair.Symbol))
	return view, nil
}

// View returns a snapshot of one session.
func (s *SessionService) View(_ context.Context, id string) (session.View, error) {
	sim, err := s.get(id)
	if err != nil {
		return session.View{}, err
	}
	return sim.View(), nil
}

// Close ends a session and cancels its timers.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sim, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session_service: close %s: %w", id, domain.ErrNotFound)
	}
	sim.Close()
	s.pub.publish(ctx, domain.SessionChannel(id), Event{Type: EventSessionClosed, SessionID: id})
	s.auditLog(ctx, "session_closed", map[string]any{"session_id": id})
	return nil
}

// SelectPair switches the session to symbol with a fresh order book.
func (s *SessionService) SelectPair(ctx context.Context, id, symbol string) (session.View, error) {
	sim, err := s.get(id)
	if err != nil {
		return session.View{}, err
	}
	pair, book, err := s.loadPair(ctx, symbol)
	if err != nil {
		return session.View{}, err
	}
	sim.SelectPair(pair, book)
	view := sim.View()
	s.pub.publish(ctx, domain.SessionChannel(id), Event{Type: EventPairSelected, SessionID: id, Pair: pair.Symbol, Data: view})
	return view, nil
}

// UpdateDraft applies a partial draft update. Price and amount are free
// text; only the side is validated.
func (s *SessionService) UpdateDraft(ctx context.Context, id string, u DraftUpdate) (session.View, error) {
	sim, err := s.get(id)
	if err != nil {
		return session.View{}, err
	}
	if u.Side != nil {
		side, err := domain.ParseSide(*u.Side)
		if err != nil {
			return session.View{}, fmt.Errorf("session_service: update draft: %w", err)
		}
		sim.SetSide(side)
	}
	if u.Price != nil {
		sim.SetDraftPrice(*u.Price)
	}
	if u.Amount != nil {
		sim.SetDraftAmount(*u.Amount)
	}
	view := sim.View()
	s.pub.publish(ctx, domain.SessionChannel(id), Event{Type: EventDraftUpdated, SessionID: id, Data: view.Draft})
	return view, nil
}

// ClickBookLevel seeds the draft price from an order-book level.
func (s *SessionService) ClickBookLevel(ctx context.Context, id string, c BookClick) (session.View, error) {
	sim, err := s.get(id)
	if err != nil {
		return session.View{}, err
	}

	var price decimal.Decimal
	switch {
	case strings.TrimSpace(c.Price) != "":
		price, err = domain.ParseDecimal(c.Price)
		if err != nil {
			return session.View{}, fmt.Errorf("session_service: book click %q: %w", c.Price, domain.ErrInvalidPrice)
		}
	case c.Index != nil:
		side, err := domain.ParseSide(c.Side)
		if err != nil {
			return session.View{}, fmt.Errorf("session_service: book click: %w", err)
		}
		lvl, ok := sim.Book().Level(side, *c.Index)
		if !ok {
			return session.View{}, fmt.Errorf("session_service: book click %s[%d]: %w", side, *c.Index, domain.ErrNotFound)
		}
		price = lvl.Price
	default:
		return session.View{}, fmt.Errorf("session_service: book click: %w", domain.ErrInvalidPrice)
	}

	sim.ClickBookLevel(price)
	view := sim.View()
	s.pub.publish(ctx, domain.SessionChannel(id), Event{Type: EventDraftUpdated, SessionID: id, Data: view.Draft})
	return view, nil
}

// PlaceOrder places the session's current draft.
func (s *SessionService) PlaceOrder(ctx context.Context, id string) (domain.PlaceOrderResult, error) {
	return s.place(ctx, id, func(sim *session.Simulator) (domain.PlaceOrderResult, error) {
		return sim.PlaceOrder()
	})
}

// Submit applies a place-order request to the session and places it.
func (s *SessionService) Submit(ctx context.Context, id string, req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error) {
	return s.place(ctx, id, func(sim *session.Simulator) (domain.PlaceOrderResult, error) {
		return sim.Submit(req)
	})
}

func (s *SessionService) place(ctx context.Context, id string, do func(*session.Simulator) (domain.PlaceOrderResult, error)) (domain.PlaceOrderResult, error) {
	sim, err := s.get(id)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	if err := s.allowOrder(ctx, id); err != nil {
		return domain.PlaceOrderResult{Reason: "rate limited"}, err
	}

	res, err := do(sim)
	if !res.Notification.IsZero() {
		s.pub.publish(ctx, domain.SessionChannel(id), Event{Type: EventNotification, SessionID: id, Data: res.Notification})
	}
	if err != nil {
		s.logger.DebugContext(ctx, "order rejected",
			slog.String("session_id", id),
			slog.String("reason", res.Reason),
		)
		return res, err
	}
	s.afterFill(ctx, *res.Trade, res.Notification.Message)
	return res, nil
}

func (s *SessionService) allowOrder(ctx context.Context, id string) error {
	if s.limiter == nil || s.cfg.OrderRateLimit <= 0 {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, "orders:"+id, s.cfg.OrderRateLimit, s.cfg.OrderRateWindow)
	if err != nil {
		// Fail open: a limiter outage must not stop simulated trading.
		s.logger.WarnContext(ctx, "order rate limiter failed", slog.String("error", err.Error()))
		return nil
	}
	if !allowed {
		return fmt.Errorf("session_service: place order %s: %w", id, domain.ErrRateLimited)
	}
	return nil
}

// afterFill persists, publishes, audits and alerts one executed trade.
func (s *SessionService) afterFill(ctx context.Context, t domain.ExecutedTrade, message string) {
	if s.trades != nil {
		if err := s.trades.Insert(ctx, t); err != nil {
			s.logger.WarnContext(ctx, "persist trade failed",
				slog.String("trade_id", t.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.pub.publish(ctx, domain.SessionChannel(t.SessionID), Event{Type: EventTradeExecuted, SessionID: t.SessionID, Pair: t.Pair, Data: t})
	s.auditLog(ctx, "order_placed", map[string]any{
		"session_id": t.SessionID,
		"trade_id":   t.ID,
		"pair":       t.Pair,
		"side":       string(t.Side),
		"price":      t.Price.String(),
		"amount":     t.Amount.String(),
	})
	if s.notifier != nil {
		s.notifier.Enqueue(notify.EventOrderPlaced, "Order Placed", fmt.Sprintf("%s (session %s)", message, t.SessionID))
	}
	s.logger.InfoContext(ctx, "order placed",
		slog.String("session_id", t.SessionID),
		slog.String("trade_id", t.ID),
		slog.String("pair", t.Pair),
		slog.String("side", string(t.Side)),
		slog.String("price", t.Price.String()),
		slog.String("amount", t.Amount.String()),
	)
}

// Trades returns the session's executed-trade log, newest first.
func (s *SessionService) Trades(_ context.Context, id string) ([]domain.ExecutedTrade, error) {
	sim, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sim.Trades(), nil
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes sessions idle since before now-IdleTTL and returns how many
// were closed.
func (s *SessionService) Sweep(ctx context.Context) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := s.clock.Now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	var idle []*session.Simulator
	for id, sim := range s.sessions {
		if sim.LastActive().Before(cutoff) {
			idle = append(idle, sim)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sim := range idle {
		sim.Close()
		s.pub.publish(ctx, domain.SessionChannel(sim.ID()), Event{Type: EventSessionClosed, SessionID: sim.ID(), Data: "idle"})
	}
	if len(idle) > 0 {
		s.logger.InfoContext(ctx, "idle sessions closed", slog.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps idle sessions until ctx is cancelled, then closes every
// remaining session.
func (s *SessionService) Run(ctx context.Context) error {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *SessionService) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*session.Simulator)
	s.mu.Unlock()
	for _, sim := range all {
		sim.Close()
	}
}

func (s *SessionService) get(id string) (*session.Simulator, error) {
	s.mu.RLock()
	sim, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session_service: session %s: %w", id, domain.ErrNotFound)
	}
	return sim, nil
}

func (s *SessionService) loadPair(ctx context.Context, symbol string) (domain.TradingPair, domain.OrderBookSnapshot, error) {
	pair, err := s.markets.Pair(ctx, symbol)
	if err != nil {
		return domain.TradingPair{}, domain.OrderBookSnapshot{}, fmt.Errorf("session_service: load pair %s: %w", symbol, err)
	}
	book, err := s.markets.OrderBook(ctx, pair.Symbol)
	if err != nil {
		return domain.TradingPair{}, domain.OrderBookSnapshot{}, fmt.Errorf("session_service: load book %s: %w", symbol, err)
	}
	return pair, book, nil
}

// onDismiss runs on the timer goroutine when a notification expires.
func (s *SessionService) onDismiss(sessionID string, n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.pub.publish(ctx, domain.SessionChannel(sessionID), Event{
		Type:      EventNotificationDismissed,
		SessionID: sessionID,
		Data:      map[string]string{"id": n.ID},
	})
}

func (s *SessionService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
