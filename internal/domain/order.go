package domain

import (
	"fmt"
	"strings"
)

// Side indicates whether an order buys or sells the base asset.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide converts user input ("buy", "SELL", ...) to a Side.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Upper returns the side in upper case, as shown in confirmations.
func (s Side) Upper() string {
	return strings.ToUpper(string(s))
}

// DraftOrder is the user's in-progress, unsubmitted order input. Price and
// Amount are free text; validation is deferred until the order is placed.
type DraftOrder struct {
	Side   Side
	Price  string
	Amount string
}

// PlaceOrderRequest is the conceptual request a front end sends to place an
// order against the active pair.
type PlaceOrderRequest struct {
	Pair   string `json:"pair"`
	Side   string `json:"side"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// PlaceOrderResult is the conceptual response to a place-order request.
type PlaceOrderResult struct {
	Accepted     bool
	Reason       string
	Trade        *ExecutedTrade
	Notification Notification
}
