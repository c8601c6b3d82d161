package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Bounds on user-supplied decimals. Exponent notation is accepted but the
// value must still fit these, so "1e50000000" cannot expand into megabytes of
// digits when formatted.
const (
	MaxDecimalInput   = 64
	MaxIntegerDigits  = 30
	MaxFractionDigits = 18
)

// ParseDecimal parses s (surrounding space ignored) and rejects values that
// are too long or too large or precise to render safely.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if len(s) > MaxDecimalInput {
		return decimal.Zero, fmt.Errorf("%w: %d characters", ErrOutOfRange, len(s))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	exp := int64(d.Exponent())
	if exp < -MaxFractionDigits {
		return decimal.Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrOutOfRange, s, MaxFractionDigits)
	}
	if d.Sign() != 0 && int64(d.NumDigits())+exp > MaxIntegerDigits {
		return decimal.Zero, fmt.Errorf("%w: %q has more than %d integer digits", ErrOutOfRange, s, MaxIntegerDigits)
	}
	return d, nil
}
