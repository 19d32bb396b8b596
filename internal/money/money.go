package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor units per major unit (paise per rupee).
const Scale = 100

var (
	// ErrInvalidAmount is returned when a currency string cannot be represented in minor units.
	ErrInvalidAmount = errors.New("invalid money amount")
	// ErrOverflow indicates an arithmetic result does not fit into int64 minor units.
	ErrOverflow = errors.New("money amount overflows")
)

// Money is an immutable count of minor currency units.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromMinor wraps an integer count of minor units.
func FromMinor(minor int64) Money { return Money(minor) }

// Minor returns the raw count of minor units.
func (m Money) Minor() int64 { return int64(m) }

// Add returns m + o.
func (m Money) Add(o Money) Money { return m + o }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return m - o }

// AddChecked returns m + o. It reports false when the sum does not fit in int64.
func (m Money) AddChecked(o Money) (Money, bool) {
	if (o > 0 && m > math.MaxInt64-o) || (o < 0 && m < math.MinInt64-o) {
		return 0, false
	}
	return m + o, true
}

// Mul scales m by an integer factor. It reports false when the product overflows.
func (m Money) Mul(n int64) (Money, bool) {
	if m == 0 || n == 0 {
		return 0, true
	}
	p := int64(m) * n
	if p/n != int64(m) || (int64(m) == -1 && n == math.MinInt64) || (n == -1 && int64(m) == math.MinInt64) {
		return 0, false
	}
	return Money(p), true
}

// PercentOf returns m multiplied by p/100, rounded half up to the nearest minor unit.
// Negative operands round half away from zero so PercentOf(-x) == -PercentOf(x).
func (m Money) PercentOf(p Percent) Money {
	bps := p.BasisPoints()
	if m == 0 || bps == 0 {
		return 0
	}
	if m != math.MinInt64 && abs64(int64(m)) <= math.MaxInt64/abs64(bps) {
		return Money(divRoundHalfUp(int64(m)*bps, bpsDenominator))
	}
	num := new(big.Int).Mul(big.NewInt(int64(m)), big.NewInt(bps))
	den := big.NewInt(bpsDenominator)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	r.Abs(r).Mul(r, big.NewInt(2))
	if r.Cmp(den) >= 0 {
		q.Add(q, big.NewInt(int64(num.Sign())))
	}
	return Money(q.Int64())
}

// IsZero reports whether m is zero.
func (m Money) IsZero() bool { return m == 0 }

// IsNegative reports whether m is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// Cmp returns -1, 0 or +1 depending on whether m is less than, equal to or greater than o.
func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

// LessThan reports whether m < o.
func (m Money) LessThan(o Money) bool { return m < o }

// GreaterThan reports whether m > o.
func (m Money) GreaterThan(o Money) bool { return m > o }

// Clamp bounds m to [lo, hi].
func (m Money) Clamp(lo, hi Money) Money {
	if m < lo {
		return lo
	}
	if m > hi {
		return hi
	}
	return m
}

// Sum adds all amounts, reporting false on overflow.
func Sum(amounts ...Money) (Money, bool) {
	var total Money
	for _, a := range amounts {
		var ok bool
		if total, ok = total.AddChecked(a); !ok {
			return 0, false
		}
	}
	return total, true
}

// Min returns the smaller amount.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger amount.
func Max(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}

// Format renders m as a major-unit decimal string such as "354.00". It never touches floats.
func (m Money) Format() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	major := v / Scale
	minor := v % Scale
	return fmt.Sprintf("%s%d.%02d", sign, abs64(major), abs64(minor))
}

// String implements fmt.Stringer.
func (m Money) String() string { return m.Format() }

// Parse converts a major-unit decimal string ("300", "300.5", "300.50") into minor units.
// Values with more precision than one minor unit are rejected rather than rounded.
func Parse(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %q has sub-minor precision", ErrInvalidAmount, value)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %q", ErrOverflow, value)
	}
	return Money(shifted.IntPart()), nil
}

func divRoundHalfUp(num, den int64) int64 {
	q := num / den
	r := num % den
	if abs64(r)*2 >= den {
		if num < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
