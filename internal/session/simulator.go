// Package session implements the order-entry simulator behind the trading
// screen: one Simulator per user session holds the selected pair, its
// order-book snapshot, the draft order, a bounded log of executed trades and
// the single active notification.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// Messages shown to the user.
const (
	MsgInvalidAmount = "Invalid Amount"
	MsgInvalidPrice  = "Invalid Price"
)

// Config holds the per-session settings. Zero fields fall back to defaults.
type Config struct {
	// ID identifies the session. A random UUID is used when empty.
	ID string
	// TradeLogSize bounds the executed-trade log (default 10).
	TradeLogSize int
	// NotificationTTL is the visible lifetime of a notification (default 3s).
	NotificationTTL time.Duration
	// Clock drives timestamps and notification expiry (default SystemClock).
	Clock Clock
	// OnDismiss, when set, is called after a notification expires or is
	// dismissed. It runs without the session lock held.
	OnDismiss func(sessionID string, n domain.Notification)
}

// View is a consistent copy of a session's state.
type View struct {
	ID           string
	Pair         domain.TradingPair
	Book         domain.OrderBookSnapshot
	Draft        domain.DraftOrder
	Trades       []domain.ExecutedTrade
	Notification domain.Notification
	OrderTotal   decimal.Decimal
	LastActive   time.Time
}

// Simulator is the order-entry state of one session. All mutations go
// through its methods; it is safe for concurrent use.
type Simulator struct {
	mu         sync.Mutex
	id         string
	clock      Clock
	ttl        time.Duration
	onDismiss  func(string, domain.Notification)
	pair       domain.TradingPair
	book       domain.OrderBookSnapshot
	draft      domain.DraftOrder
	trades     *domain.TradeLog
	notice     domain.Notification
	timer      Timer
	lastActive time.Time
	closed     bool
}

// New creates a Simulator with pair selected and side set to buy.
func New(cfg Config, pair domain.TradingPair, book domain.OrderBookSnapshot) *Simulator {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.NotificationTTL <= 0 {
		cfg.NotificationTTL = domain.DefaultNotificationTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	s := &Simulator{
		id:        cfg.ID,
		clock:     cfg.Clock,
		ttl:       cfg.NotificationTTL,
		onDismiss: cfg.OnDismiss,
		trades:    domain.NewTradeLog(cfg.TradeLogSize),
		draft:     domain.DraftOrder{Side: domain.SideBuy},
	}
	s.selectPairLocked(pair, book)
	s.lastActive = s.clock.Now()
	return s
}

// ID returns the session identifier.
func (s *Simulator) ID() string {
	return s.id
}

// SelectPair replaces the active pair and its order book, resets the draft
// amount to empty and the draft price to the pair's last price. The side is
// left unchanged.
func (s *Simulator) SelectPair(pair domain.TradingPair, book domain.OrderBookSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectPairLocked(pair, book)
	s.touch()
}

func (s *Simulator) selectPairLocked(pair domain.TradingPair, book domain.OrderBookSnapshot) {
	s.pair = pair
	s.book = book.Clone()
	s.draft.Price = pair.Price.String()
	s.draft.Amount = ""
}

// SetDraftPrice assigns the draft price verbatim.
func (s *Simulator) SetDraftPrice(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Price = v
	s.touch()
}

// SetDraftAmount assigns the draft amount verbatim.
func (s *Simulator) SetDraftAmount(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Amount = v
	s.touch()
}

// SetSide switches the order side.
func (s *Simulator) SetSide(side domain.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Side = side
	s.touch()
}

// ClickBookLevel seeds the draft price from an order-book level, formatted
// with the active pair's precision. It returns the new draft price.
func (s *Simulator) ClickBookLevel(levelPrice decimal.Decimal) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Price = s.pair.FormatPrice(levelPrice)
	s.touch()
	return s.draft.Price
}

// PlaceOrder turns the draft into a synthetic fill. An empty, unparsable,
// out-of-range or non-positive amount is rejected with
// domain.ErrInvalidAmount; the rejection shows a notification and changes
// nothing else. The draft price is not validated: the fill records its
// parsed value, or zero when it does not parse. On success the trade is
// prepended to the log, a confirmation is shown and the draft amount is
// cleared; price and side are kept for the next order. A closed session
// yields domain.ErrNotFound.
func (s *Simulator) PlaceOrder() (domain.PlaceOrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.PlaceOrderResult{}, fmt.Errorf("session %s: place order: %w", s.id, domain.ErrNotFound)
	}
	s.touch()
	return s.placeLocked()
}

// Submit applies a conceptual place-order request to the draft and places
// it in one step. Empty request fields keep the current draft values. Unlike
// the draft path, an explicit price must be a positive decimal
// (domain.ErrInvalidPrice). A pair other than the active one yields
// domain.ErrPairMismatch and an unknown side domain.ErrInvalidSide. A
// rejected request leaves the draft as it was.
func (s *Simulator) Submit(req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.PlaceOrderResult{}, fmt.Errorf("session %s: submit: %w", s.id, domain.ErrNotFound)
	}
	s.touch()

	if req.Pair != "" && domain.NormalizeSymbol(req.Pair) != s.pair.Symbol {
		return domain.PlaceOrderResult{Reason: domain.ErrPairMismatch.Error()},
			fmt.Errorf("session: submit %s: %w", req.Pair, domain.ErrPairMismatch)
	}
	next := s.draft
	if req.Side != "" {
		side, err := domain.ParseSide(req.Side)
		if err != nil {
			return domain.PlaceOrderResult{Reason: domain.ErrInvalidSide.Error()}, fmt.Errorf("session: submit: %w", err)
		}
		next.Side = side
	}
	if req.Price != "" {
		if p, err := domain.ParseDecimal(req.Price); err != nil || p.Sign() <= 0 {
			n := s.showLocked(domain.NotificationError, MsgInvalidPrice)
			return domain.PlaceOrderResult{Reason: MsgInvalidPrice, Notification: n},
				fmt.Errorf("session: submit price %q: %w", req.Price, domain.ErrInvalidPrice)
		}
		next.Price = req.Price
	}
	next.Amount = req.Amount

	prev := s.draft
	s.draft = next
	res, err := s.placeLocked()
	if err != nil {
		s.draft = prev
	}
	return res, err
}

func (s *Simulator) placeLocked() (domain.PlaceOrderResult, error) {
	rawAmount := strings.TrimSpace(s.draft.Amount)
	amount, err := domain.ParseDecimal(rawAmount)
	if rawAmount == "" || err != nil || amount.Sign() <= 0 {
		n := s.showLocked(domain.NotificationError, MsgInvalidAmount)
		return domain.PlaceOrderResult{Reason: MsgInvalidAmount, Notification: n},
			fmt.Errorf("session: place order amount %q: %w", s.draft.Amount, domain.ErrInvalidAmount)
	}

	rawPrice := strings.TrimSpace(s.draft.Price)
	price := parseOrZero(rawPrice)

	now := s.clock.Now()
	trade := domain.ExecutedTrade{
		ID:         uuid.NewString(),
		SessionID:  s.id,
		Pair:       s.pair.Symbol,
		Side:       s.draft.Side,
		Price:      price,
		Amount:     amount,
		ExecutedAt: now,
		Time:       now.Format("15:04:05"),
	}
	s.trades.Prepend(trade)

	msg := fmt.Sprintf("Order Placed: %s %s %s @ %s", s.draft.Side.Upper(), rawAmount, s.pair.Base(), rawPrice)
	n := s.showLocked(domain.NotificationInfo, msg)
	s.draft.Amount = ""

	return domain.PlaceOrderResult{Accepted: true, Trade: &trade, Notification: n}, nil
}

// parseOrZero parses free-text draft input; anything unusable counts as 0.
func parseOrZero(v string) decimal.Decimal {
	d, err := domain.ParseDecimal(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Notify shows an arbitrary message, replacing any active notification.
func (s *Simulator) Notify(kind domain.NotificationKind, msg string) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showLocked(kind, msg)
}

// showLocked replaces the active notification and reschedules expiry. The
// previous notification's timer is cancelled so it can never clear the new
// one.
func (s *Simulator) showLocked(kind domain.NotificationKind, msg string) domain.Notification {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.closed {
		return domain.Notification{}
	}
	now := s.clock.Now()
	n := domain.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.notice = n
	id := n.ID
	s.timer = s.clock.AfterFunc(s.ttl, func() { s.Dismiss(id) })
	return n
}

// Dismiss clears the active notification if its identity is id. A stale id
// is a no-op. It reports whether a notification was cleared.
func (s *Simulator) Dismiss(id string) bool {
	s.mu.Lock()
	if id == "" || s.notice.ID != id {
		s.mu.Unlock()
		return false
	}
	n := s.notice
	s.notice = domain.Notification{}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	cb := s.onDismiss
	s.mu.Unlock()

	if cb != nil {
		cb(s.id, n)
	}
	return true
}

// Notification returns the active notification, or the zero value.
func (s *Simulator) Notification() domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// Draft returns the current draft order.
func (s *Simulator) Draft() domain.DraftOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Pair returns the active pair.
func (s *Simulator) Pair() domain.TradingPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair
}

// Book returns a copy of the active order-book snapshot.
func (s *Simulator) Book() domain.OrderBookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Clone()
}

// Trades returns the executed-trade log, newest first.
func (s *Simulator) Trades() []domain.ExecutedTrade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades.Entries()
}

// OrderTotal returns draft price times draft amount rounded to 2 places.
// Unparsable inputs count as zero.
func (s *Simulator) OrderTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderTotalLocked()
}

func (s *Simulator) orderTotalLocked() decimal.Decimal {
	return parseOrZero(s.draft.Price).Mul(parseOrZero(s.draft.Amount)).Round(2)
}

// View returns a consistent copy of the whole session state.
func (s *Simulator) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:           s.id,
		Pair:         s.pair,
		Book:         s.book.Clone(),
		Draft:        s.draft,
		Trades:       s.trades.Entries(),
		Notification: s.notice,
		OrderTotal:   s.orderTotalLocked(),
		LastActive:   s.lastActive,
	}
}

// LastActive returns the time of the last user operation.
func (s *Simulator) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close cancels the pending notification timer. Notifications shown after
// Close are dropped.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.notice = domain.Notification{}
	s.closed = true
}

func (s *Simulator) touch() {
	s.lastActive = s.clock.Now()
}

// MarshalJSON renders the view as the trading screen consumes it.
func (v View) MarshalJSON() ([]byte, error) {
	trades := v.Trades
	if trades == nil {
		trades = []domain.ExecutedTrade{}
	}
	return json.Marshal(struct {
		ID           string                   `json:"id"`
		Pair         domain.TradingPair       `json:"pair"`
		Book         domain.OrderBookSnapshot `json:"book"`
		Draft        domain.DraftOrder        `json:"draft"`
		OrderTotal   string                   `json:"order_total"`
		Trades       []domain.ExecutedTrade   `json:"trades"`
		Notification domain.Notification      `json:"notification"`
		LastActive   time.Time                `json:"last_active"`
	}{v.ID, v.Pair, v.Book, v.Draft, v.OrderTotal.StringFixed(2), trades, v.Notification, v.LastActive})
}
