package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTradingPairFormatting(t *testing.T) {
	tests := []struct {
		name  string
		pair  TradingPair
		price string
		want  string
	}{
		{"two decimals pads", TradingPair{Symbol: "BTC/USDT", Decimals: 2}, "64235.5", "64235.50"},
		{"two decimals rounds", TradingPair{Symbol: "BTC/USDT", Decimals: 2}, "64235.555", "64235.56"},
		{"four decimals", TradingPair{Symbol: "XRP/USDT", Decimals: 4}, "0.6234", "0.6234"},
		{"zero decimals", TradingPair{Symbol: "X/Y", Decimals: 0}, "12.4", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pair.FormatPrice(decimal.RequireFromString(tt.price))
			if got != tt.want {
				t.Errorf("FormatPrice(%s) = %q, want %q", tt.price, got, tt.want)
			}
		})
	}
}

func TestTradingPairBaseQuote(t *testing.T) {
	p := TradingPair{Symbol: "BTC/USDT"}
	if p.Base() != "BTC" || p.Quote() != "USDT" {
		t.Errorf("Base/Quote = %q/%q", p.Base(), p.Quote())
	}
	if (TradingPair{Symbol: "BTC"}).Quote() != "" {
		t.Error("Quote of a symbol without separator should be empty")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	for in, want := range map[string]string{
		"btc/usdt":   "BTC/USDT",
		"eth-usdt":   "ETH/USDT",
		" sol_usdt ": "SOL/USDT",
	} {
		if got := NormalizeSymbol(in); got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSide(t *testing.T) {
	if s, err := ParseSide(" SELL "); err != nil || s != SideSell {
		t.Errorf("ParseSide(SELL) = %q, %v", s, err)
	}
	if _, err := ParseSide("short"); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("ParseSide(short) err = %v, want ErrInvalidSide", err)
	}
}

func TestOrderBookSnapshotHelpers(t *testing.T) {
	snap := OrderBookSnapshot{
		Asks: []OrderBookLevel{{Price: decimal.RequireFromString("101.5")}},
		Bids: []OrderBookLevel{{Price: decimal.RequireFromString("100")}, {Price: decimal.RequireFromString("99")}},
	}
	if got := snap.Spread().String(); got != "1.5" {
		t.Errorf("Spread = %s, want 1.5", got)
	}
	if lvl, ok := snap.Level(SideBuy, 1); !ok || lvl.Price.String() != "99" {
		t.Errorf("Level(buy,1) = %v, %v", lvl, ok)
	}
	if _, ok := snap.Level(SideSell, 1); ok {
		t.Error("Level(sell,1) should be out of range")
	}

	clone := snap.Clone()
	clone.Bids[0].Price = decimal.Zero
	if snap.Bids[0].Price.IsZero() {
		t.Error("Clone must not share ladders")
	}
	if (OrderBookSnapshot{}).Spread().Sign() != 0 {
		t.Error("empty book spread should be zero")
	}
}

func TestParseDecimal(t *testing.T) {
	ok := map[string]string{
		"0.5":        "0.5",
		" 64235.50 ": "64235.5",
		"1e3":        "1000",
		"0.00000001": "0.00000001",
		"0":          "0",
		"-2.5":       "-2.5",
		"123456789012345678901234567890": "123456789012345678901234567890",
	}
	for in, want := range ok {
		d, err := ParseDecimal(in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", in, err)
		}
		if d.String() != want {
			t.Fatalf("ParseDecimal(%q) = %s, want %s", in, d, want)
		}
	}

	for _, in := range []string{
		"1e50000000",
		"1e30000000",
		"1e-50000000",
		"1234567890123456789012345678901",
		"0.0000000000000000001",
		strings.Repeat("1", MaxDecimalInput+1),
	} {
		if _, err := ParseDecimal(in); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("ParseDecimal(%q) err = %v, want ErrOutOfRange", in, err)
		}
	}
	if _, err := ParseDecimal("abc"); err == nil || errors.Is(err, ErrOutOfRange) {
		t.Fatalf("ParseDecimal(abc) err = %v, want syntax error", err)
	}
}
