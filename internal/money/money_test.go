package money

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPercentOfRoundsHalfUp(t *testing.T) {
	cases := []struct {
		name    string
		amount  Money
		percent Percent
		want    Money
	}{
		{"eighteen percent of 300 rupees", 30000, WholePercent(18), 5400},
		{"ten percent of 300 rupees", 30000, WholePercent(10), 3000},
		{"tax on discounted base", 27000, WholePercent(18), 4860},
		{"exact half rounds up", 50, WholePercent(1), 1},
		{"below half rounds down", 49, WholePercent(1), 0},
		{"fractional percent", 19999, PercentFromBasisPoints(1250), 2500},
		{"hundred percent is identity", 12345, MaxPercent, 12345},
		{"zero percent", 12345, 0, 0},
		{"zero amount", 0, WholePercent(18), 0},
		{"negative half rounds away from zero", -50, WholePercent(1), -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.amount.PercentOf(tc.percent))
		})
	}
}

func TestPercentOfLargeAmountsStayExact(t *testing.T) {
	amount := Money(math.MaxInt64 / 2)
	got := amount.PercentOf(MaxPercent)
	require.Equal(t, amount, got)

	half := Money(math.MaxInt64 - 1).PercentOf(WholePercent(50))
	require.Equal(t, Money(math.MaxInt64/2), half)
}

func TestPercentOfIsSymmetric(t *testing.T) {
	for _, amount := range []Money{1, 7, 149, 150, 151, 99999} {
		p := PercentFromBasisPoints(1750)
		require.Equal(t, -amount.PercentOf(p), (-amount).PercentOf(p), "amount %d", amount)
	}
}

func TestMulDetectsOverflow(t *testing.T) {
	got, ok := Money(30000).Mul(3)
	require.True(t, ok)
	require.Equal(t, Money(90000), got)

	_, ok = Money(math.MaxInt64 / 2).Mul(3)
	require.False(t, ok)

	_, ok = Money(math.MinInt64).Mul(-1)
	require.False(t, ok)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "354.00", Money(35400).Format())
	require.Equal(t, "0.05", Money(5).Format())
	require.Equal(t, "-1.50", Money(-150).Format())
	require.Equal(t, "0.00", Zero.String())
}

func TestParse(t *testing.T) {
	got, err := Parse("300.00")
	require.NoError(t, err)
	require.Equal(t, Money(30000), got)

	got, err = Parse(" 12.5 ")
	require.NoError(t, err)
	require.Equal(t, Money(1250), got)

	got, err = Parse("12.500")
	require.NoError(t, err)
	require.Equal(t, Money(1250), got)

	_, err = Parse("12.345")
	require.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = Parse("abc")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestClampAndCompare(t *testing.T) {
	require.Equal(t, Money(0), Money(-5).Clamp(0, 100))
	require.Equal(t, Money(100), Money(500).Clamp(0, 100))
	require.Equal(t, -1, Money(1).Cmp(2))
	require.Equal(t, 0, Money(2).Cmp(2))
	require.True(t, Money(3).GreaterThan(2))
	total, ok := Sum(1, 2, 3)
	require.True(t, ok)
	require.Equal(t, Money(6), total)
	require.Equal(t, Money(1), Min(1, 2))
	require.Equal(t, Money(2), Max(1, 2))
}

func TestAddCheckedDetectsOverflow(t *testing.T) {
	sum, ok := Money(math.MaxInt64 - 1).AddChecked(1)
	require.True(t, ok)
	require.Equal(t, Money(math.MaxInt64), sum)

	_, ok = Money(math.MaxInt64).AddChecked(1)
	require.False(t, ok)
	_, ok = Money(math.MinInt64).AddChecked(-1)
	require.False(t, ok)

	sum, ok = Money(math.MaxInt64).AddChecked(math.MinInt64)
	require.True(t, ok)
	require.Equal(t, Money(-1), sum)

	_, ok = Sum(math.MaxInt64, 1)
	require.False(t, ok)
}
