package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// bpsDenominator converts basis points (hundredths of a percent) into a ratio.
	bpsDenominator = 10000
	// MaxPercent is 100% expressed in basis points.
	MaxPercent Percent = 10000
)

// ErrInvalidPercent is returned when a percent string is malformed or too precise.
var ErrInvalidPercent = errors.New("invalid percent")

// Percent is a percentage held exactly as basis points: 18% is 1800, 12.5% is 1250.
type Percent int64

// PercentFromBasisPoints wraps a basis point count.
func PercentFromBasisPoints(bps int64) Percent { return Percent(bps) }

// WholePercent builds a Percent from an integer percentage.
func WholePercent(p int64) Percent { return Percent(p * 100) }

// BasisPoints returns the raw basis point count.
func (p Percent) BasisPoints() int64 { return int64(p) }

// InRange reports whether p lies within [0, 100].
func (p Percent) InRange() bool { return p >= 0 && p <= MaxPercent }

// IsZero reports whether p is zero.
func (p Percent) IsZero() bool { return p == 0 }

// String renders the percentage without trailing zeros, e.g. "18" or "12.5".
func (p Percent) String() string {
	return decimal.New(int64(p), -2).String()
}

// MarshalText encodes the percentage as its decimal string.
func (p Percent) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a decimal percentage string.
func (p *Percent) UnmarshalText(text []byte) error {
	parsed, err := ParsePercent(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePercent converts a decimal string such as "18", "12.5" or "0.25" into a Percent.
// An empty string parses as zero. Range checking is left to the caller.
func ParsePercent(value string) (Percent, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if trimmed == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPercent, value)
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %q supports at most two decimal places", ErrInvalidPercent, value)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPercent, value)
	}
	return Percent(shifted.IntPart()), nil
}
