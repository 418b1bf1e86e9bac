// Package money converts between decimal strings and integer minor units.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// Parse converts a decimal string such as "10.50" into minor units.
// More fractional digits than decimals is an error, not a rounding.
func Parse(s string, decimals int32) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("amount required")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if !d.Equal(d.Truncate(decimals)) {
		return 0, fmt.Errorf("amount supports up to %d decimals", decimals)
	}

	minor := d.Shift(decimals)
	if minor.Abs().GreaterThan(maxMinor) {
		return 0, errors.New("amount out of range")
	}

	return minor.IntPart(), nil
}

// ParsePositive is Parse restricted to amounts above zero.
func ParsePositive(s string, decimals int32) (int64, error) {
	v, err := Parse(s, decimals)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, errors.New("amount must be > 0")
	}
	return v, nil
}

// Format renders minor units with exactly decimals fractional digits.
func Format(minor int64, decimals int32) string {
	return decimal.New(minor, -decimals).StringFixed(decimals)
}
