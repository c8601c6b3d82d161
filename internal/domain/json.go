package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Wire encodings. Prices and amounts are emitted as JSON numbers using
// their exact decimal text, never via float64. Pair prices keep the pair's
// display precision; levels and trades drop trailing zeros.

func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func fixed(d decimal.Decimal, places int32) json.Number {
	return json.Number(d.StringFixed(places))
}

func (p TradingPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pair     string      `json:"pair"`
		Price    json.Number `json:"price"`
		Change   json.Number `json:"change"`
		Vol      string      `json:"vol"`
		Decimals int32       `json:"decimals"`
	}{p.Symbol, fixed(p.Price, p.Decimals), fixed(p.Change, 2), p.Volume, p.Decimals})
}

func (l OrderBookLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Price  json.Number `json:"price"`
		Amount json.Number `json:"amount"`
	}{num(l.Price), num(l.Amount)})
}

func (s OrderBookSnapshot) MarshalJSON() ([]byte, error) {
	asks, bids := s.Asks, s.Bids
	if asks == nil {
		asks = []OrderBookLevel{}
	}
	if bids == nil {
		bids = []OrderBookLevel{}
	}
	return json.Marshal(struct {
		Pair      string           `json:"pair"`
		Asks      []OrderBookLevel `json:"asks"`
		Bids      []OrderBookLevel `json:"bids"`
		Timestamp time.Time        `json:"timestamp"`
	}{s.Pair, asks, bids, s.Timestamp})
}

func (t ExecutedTrade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string      `json:"id"`
		SessionID  string      `json:"session_id,omitempty"`
		Pair       string      `json:"pair"`
		Side       Side        `json:"side"`
		Price      json.Number `json:"price"`
		Amount     json.Number `json:"amount"`
		Total      json.Number `json:"total"`
		Time       string      `json:"time"`
		ExecutedAt time.Time   `json:"executed_at"`
	}{t.ID, t.SessionID, t.Pair, t.Side, num(t.Price), num(t.Amount), num(t.Total()), t.Time, t.ExecutedAt})
}

func (t MarketTrade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pair   string      `json:"pair"`
		Price  json.Number `json:"price"`
		Amount json.Number `json:"amount"`
		Side   Side        `json:"side"`
		Time   string      `json:"time"`
	}{t.Pair, num(t.Price), num(t.Amount), t.Side, t.Time})
}

func (d DraftOrder) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Side   Side   `json:"side"`
		Price  string `json:"price"`
		Amount string `json:"amount"`
	}{d.Side, d.Price, d.Amount})
}

// MarshalJSON encodes an empty notification as null.
func (n Notification) MarshalJSON() ([]byte, error) {
	if n.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		ID        string           `json:"id"`
		Kind      NotificationKind `json:"kind"`
		Message   string           `json:"message"`
		CreatedAt time.Time        `json:"created_at"`
		ExpiresAt time.Time        `json:"expires_at"`
	}{n.ID, n.Kind, n.Message, n.CreatedAt, n.ExpiresAt})
}

func (r PlaceOrderResult) MarshalJSON() ([]byte, error) {
	var notice *Notification
	if !r.Notification.IsZero() {
		notice = &r.Notification
	}
	return json.Marshal(struct {
		Accepted     bool           `json:"accepted"`
		Reason       string         `json:"reason,omitempty"`
		Trade        *ExecutedTrade `json:"trade,omitempty"`
		Notification *Notification  `json:"notification,omitempty"`
	}{r.Accepted, r.Reason, r.Trade, notice})
}
