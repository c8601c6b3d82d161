package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TradingPair is a tradable instrument as shown on the trading screen. A pair
// value is immutable per snapshot; switching pairs replaces it wholesale.
type TradingPair struct {
	Symbol   string          // "BTC/USDT"
	Price    decimal.Decimal // last traded price
	Change   decimal.Decimal // 24h change in percent, signed
	Volume   string          // 24h volume display string, e.g. "45.2B"
	Decimals int32           // price display precision
}

// Base returns the base asset of the pair ("BTC" for "BTC/USDT").
func (p TradingPair) Base() string {
	base, _, _ := strings.Cut(p.Symbol, "/")
	return base
}

// Quote returns the quote asset of the pair ("USDT" for "BTC/USDT"), or an
// empty string when the symbol has no separator.
func (p TradingPair) Quote() string {
	_, quote, _ := strings.Cut(p.Symbol, "/")
	return quote
}

// FormatPrice renders price with exactly the pair's display precision.
func (p TradingPair) FormatPrice(price decimal.Decimal) string {
	return price.StringFixed(p.Decimals)
}

// LastPrice returns the pair's last price formatted for display.
func (p TradingPair) LastPrice() string {
	return p.FormatPrice(p.Price)
}

// IsZero reports whether p is the zero pair (no pair selected).
func (p TradingPair) IsZero() bool {
	return p.Symbol == ""
}

// NormalizeSymbol upper-cases a pair symbol and accepts "-" or "_" as the
// base/quote separator, so "btc-usdt" and "BTC/USDT" name the same pair.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("-", "/", "_", "/").Replace(s)
	return s
}
