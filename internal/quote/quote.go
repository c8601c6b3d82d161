// Package quote prices "buy crypto" requests: how much of an asset a given
// spend in the quote currency buys through a payment method.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// QuoteCurrency is the currency spends are denominated in.
const QuoteCurrency = "USDT"

// ReceivePlaces is the precision of the receive amount.
const ReceivePlaces = 6

var (
	ErrInvalidSpend  = errors.New("spend must be a positive amount")
	ErrUnknownMethod = errors.New("unknown payment method")
	ErrUnknownAsset  = errors.New("unknown asset")
)

// PaymentMethod is a funding route with its fee.
type PaymentMethod struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Fee            decimal.Decimal `json:"fee"` // fraction, 0.02 = 2%
	ProcessingTime string          `json:"processing_time"`
}

// DefaultMethods returns the built-in payment methods.
func DefaultMethods() []PaymentMethod {
	return []PaymentMethod{
		{ID: "card", Name: "Credit/Debit Card", Fee: decimal.RequireFromString("0.02"), ProcessingTime: "Instant"},
		{ID: "bank", Name: "Bank Transfer", Fee: decimal.Zero, ProcessingTime: "1-3 Days"},
		{ID: "p2p", Name: "P2P Trading", Fee: decimal.Zero, ProcessingTime: "Variable"},
	}
}

// Request asks for a quote.
type Request struct {
	Asset  string `json:"asset"`
	Spend  string `json:"spend"`
	Method string `json:"method"`
}

// Quote is the priced result of a Request.
type Quote struct {
	Asset   string          `json:"asset"`
	Spend   decimal.Decimal `json:"spend"`
	Price   decimal.Decimal `json:"price"`
	Method  PaymentMethod   `json:"method"`
	Fee     decimal.Decimal `json:"fee"` // in quote currency
	Receive decimal.Decimal `json:"receive"`
}

// Calculator prices quotes against the market provider's last prices.
type Calculator struct {
	markets domain.MarketSnapshotProvider
	methods []PaymentMethod
}

// NewCalculator creates a Calculator. A nil methods slice selects
// DefaultMethods.
func NewCalculator(markets domain.MarketSnapshotProvider, methods []PaymentMethod) *Calculator {
	if methods == nil {
		methods = DefaultMethods()
	}
	return &Calculator{markets: markets, methods: methods}
}

// Methods lists the payment methods.
func (c *Calculator) Methods() []PaymentMethod {
	out := make([]PaymentMethod, len(c.methods))
	copy(out, c.methods)
	return out
}

// Quote computes receive = spend / price * (1 - fee), rounded to
// ReceivePlaces.
func (c *Calculator) Quote(ctx context.Context, req Request) (Quote, error) {
	spend, err := domain.ParseDecimal(req.Spend)
	if err != nil || spend.Sign() <= 0 {
		return Quote{}, fmt.Errorf("quote: spend %q: %w", req.Spend, ErrInvalidSpend)
	}
	method, ok := c.method(req.Method)
	if !ok {
		return Quote{}, fmt.Errorf("quote: method %q: %w", req.Method, ErrUnknownMethod)
	}
	asset := strings.ToUpper(strings.TrimSpace(req.Asset))
	price, err := c.price(ctx, asset)
	if err != nil {
		return Quote{}, err
	}

	fee := spend.Mul(method.Fee)
	receive := spend.Div(price).Mul(decimal.NewFromInt(1).Sub(method.Fee)).Round(ReceivePlaces)
	return Quote{
		Asset:   asset,
		Spend:   spend,
		Price:   price,
		Method:  method,
		Fee:     fee.Round(2),
		Receive: receive,
	}, nil
}

func (c *Calculator) method(id string) (PaymentMethod, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, m := range c.methods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

func (c *Calculator) price(ctx context.Context, asset string) (decimal.Decimal, error) {
	if asset == "" {
		return decimal.Zero, fmt.Errorf("quote: asset: %w", ErrUnknownAsset)
	}
	if asset == QuoteCurrency {
		return decimal.NewFromInt(1), nil
	}
	pair, err := c.markets.Pair(ctx, asset+"/"+QuoteCurrency)
	if errors.Is(err, domain.ErrUnknownPair) {
		return decimal.Zero, fmt.Errorf("quote: asset %s: %w", asset, ErrUnknownAsset)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote: price %s: %w", asset, err)
	}
	return pair.Price, nil
}
