package billing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/medbill/internal/money"
)

func mustLine(t *testing.T, charge CatalogCharge, qty int, discount money.Percent) LineItemBreakdown {
	t.Helper()
	line, err := ComputeLineItem(charge, qty, discount)
	require.NoError(t, err)
	return line
}

func requireNetInvariant(t *testing.T, totals BillTotals) {
	t.Helper()
	want := totals.Subtotal.Sub(totals.TotalDiscount).Add(totals.TaxTotal).Add(totals.SurchargeTotal)
	require.Equal(t, want, totals.NetAmount)
	require.False(t, totals.NetAmount.IsNegative())
}

func TestAggregateBillSumsLines(t *testing.T) {
	lines := []LineItemBreakdown{
		mustLine(t, consultation, 1, 0),
		mustLine(t, consultation, 1, money.WholePercent(10)),
	}
	totals, err := AggregateBill(lines, 0, nil)
	require.NoError(t, err)
	require.Equal(t, money.Money(60000), totals.Subtotal)
	require.Equal(t, money.Money(3000), totals.LineDiscountTotal)
	require.Equal(t, money.Money(10260), totals.TaxTotal)
	require.Equal(t, money.Money(67260), totals.PreBillDiscountNet)
	require.Equal(t, money.Money(67260), totals.NetAmount)
	require.Nil(t, totals.Warning)
	requireNetInvariant(t, totals)
}

func TestAggregateBillDiscountOnTaxedTotal(t *testing.T) {
	lines := []LineItemBreakdown{mustLine(t, consultation, 1, 0)}
	surcharges := []Surcharge{{Name: "Home Collection", Amount: 10000}}
	totals, err := AggregateBill(lines, money.WholePercent(5), surcharges)
	require.NoError(t, err)
	// 5% of 35400 = 1770, applied after tax, before the flat surcharge.
	require.Equal(t, money.Money(1770), totals.BillDiscountAmount)
	require.Equal(t, money.Money(1770), totals.TotalDiscount)
	require.Equal(t, money.Money(10000), totals.SurchargeTotal)
	require.Equal(t, money.Money(35400-1770+10000), totals.NetAmount)
	requireNetInvariant(t, totals)
}

func TestAggregateBillFullDiscountLeavesSurchargesOnly(t *testing.T) {
	lines := []LineItemBreakdown{
		mustLine(t, consultation, 1, 0),
		mustLine(t, consultation, 1, 0),
	}
	totals, err := AggregateBill(lines, money.MaxPercent, nil)
	require.NoError(t, err)
	require.Equal(t, totals.PreBillDiscountNet, totals.BillDiscountAmount)
	require.Equal(t, money.Money(0), totals.NetAmount)
	requireNetInvariant(t, totals)

	withFee, err := AggregateBill(lines, money.MaxPercent, []Surcharge{{Name: "Dispatch", Amount: 50000}})
	require.NoError(t, err)
	require.Equal(t, money.Money(50000), withFee.NetAmount)
	requireNetInvariant(t, withFee)
}

func TestAggregateBillClampsFlatDiscountWithWarning(t *testing.T) {
	lines := []LineItemBreakdown{mustLine(t, consultation, 1, 0)}
	totals, err := AggregateBillWithOptions(lines, BillOptions{
		DiscountPercent: money.WholePercent(50),
		DiscountAmount:  20000,
		Surcharges:      []Surcharge{{Name: "Dispatch", Amount: 50000}},
	})
	require.NoError(t, err)
	require.NotNil(t, totals.Warning)
	require.Equal(t, money.Money(17700+20000), totals.Warning.Requested)
	require.Equal(t, money.Money(35400), totals.Warning.Applied)
	require.Equal(t, money.Money(35400), totals.BillDiscountAmount)
	require.Equal(t, money.Money(50000), totals.NetAmount)
	require.Equal(t, "DISCOUNT_EXCEEDS_TOTAL", totals.Warning.Code())
	require.Contains(t, totals.Warning.Error(), "discount cannot exceed total charge")
	requireNetInvariant(t, totals)
}

func TestAggregateBillEmpty(t *testing.T) {
	totals, err := AggregateBill(nil, 0, nil)
	require.NoError(t, err)
	require.Equal(t, BillTotals{}, totals)

	state := ResolvePaymentStatus(totals.NetAmount, 0)
	require.Equal(t, StatusPending, state.Status)

	feeOnly, err := AggregateBill([]LineItemBreakdown{}, money.WholePercent(10), []Surcharge{{Name: "Home Collection", Amount: 10000}})
	require.NoError(t, err)
	require.Equal(t, money.Money(10000), feeOnly.NetAmount)
	require.Equal(t, money.Money(0), feeOnly.BillDiscountAmount)
	require.Nil(t, feeOnly.Warning)
}

func TestAggregateBillValidation(t *testing.T) {
	_, err := AggregateBill(nil, money.WholePercent(101), nil)
	require.ErrorIs(t, err, ErrValidation)
	require.EqualError(t, err, "percent out of range")

	_, err = AggregateBill(nil, 0, []Surcharge{{Name: "bad", Amount: -1}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "surcharges[0].amount", verr.Field)

	_, err = AggregateBillWithOptions(nil, BillOptions{DiscountAmount: -10})
	require.ErrorIs(t, err, ErrValidation)

	tampered := mustLine(t, consultation, 1, 0)
	tampered.LineTotal++
	_, err = AggregateBill([]LineItemBreakdown{tampered}, 0, nil)
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "lineItems[0]", verr.Field)
}

func TestAggregateBillNeverNegative(t *testing.T) {
	lines := []LineItemBreakdown{
		mustLine(t, consultation, 3, money.WholePercent(15)),
		mustLine(t, CatalogCharge{ID: "cbc", UnitPrice: 45050, TaxPercent: money.PercentFromBasisPoints(500)}, 2, money.PercentFromBasisPoints(1234)),
	}
	for _, percent := range []money.Percent{0, 1, 2500, 9999, money.MaxPercent} {
		for _, flat := range []money.Money{0, 1, 100000, 10000000} {
			totals, err := AggregateBillWithOptions(lines, BillOptions{DiscountPercent: percent, DiscountAmount: flat})
			require.NoError(t, err)
			requireNetInvariant(t, totals)
			if totals.Warning != nil {
				require.True(t, totals.Warning.Requested.GreaterThan(totals.PreBillDiscountNet))
				require.Equal(t, money.Money(0), totals.NetAmount)
			}
		}
	}
}

func TestAggregateBillRejectsOverflowingFlatDiscount(t *testing.T) {
	lines := []LineItemBreakdown{mustLine(t, consultation, 1, 0)}
	_, err := AggregateBillWithOptions(lines, BillOptions{
		DiscountPercent: money.WholePercent(10),
		DiscountAmount:  math.MaxInt64,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "billDiscountAmount", verr.Field)
	require.Equal(t, "amount overflows", verr.Message)

	// Largest flat amount that still fits next to the 10% part is clamped with a warning.
	totals, err := AggregateBillWithOptions(lines, BillOptions{
		DiscountPercent: money.WholePercent(10),
		DiscountAmount:  math.MaxInt64 - 3540,
	})
	require.NoError(t, err)
	require.NotNil(t, totals.Warning)
	require.Equal(t, money.Money(math.MaxInt64), totals.Warning.Requested)
	require.Equal(t, money.Money(35400), totals.BillDiscountAmount)
	require.Equal(t, money.Money(0), totals.NetAmount)
	requireNetInvariant(t, totals)
}

func TestAggregateBillRejectsOverflowingSurcharges(t *testing.T) {
	_, err := AggregateBill(nil, 0, []Surcharge{{Name: "a", Amount: math.MaxInt64}, {Name: "b", Amount: 1}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "surcharges", verr.Field)

	lines := []LineItemBreakdown{mustLine(t, consultation, 1, 0)}
	_, err = AggregateBill(lines, 0, []Surcharge{{Name: "a", Amount: math.MaxInt64 - 100}})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "surcharges", verr.Field)
}

func TestAggregateBillExtremeAmounts(t *testing.T) {
	huge := money.Money(math.MaxInt64)
	icu := CatalogCharge{ID: "icu", UnitPrice: huge / 4, TaxPercent: money.WholePercent(18)}
	bigLine := mustLine(t, icu, 1, 0)

	lineSets := [][]LineItemBreakdown{
		nil,
		{mustLine(t, consultation, 1, 0)},
		{bigLine},
		{bigLine, bigLine},
		{bigLine, bigLine, bigLine, bigLine},
	}
	surchargeSets := [][]Surcharge{
		nil,
		{{Name: "large", Amount: huge / 2}},
		{{Name: "max", Amount: huge}},
		{{Name: "max", Amount: huge}, {Name: "one", Amount: 1}},
	}
	flats := []money.Money{0, 1, huge / 2, huge - 1, huge}
	percents := []money.Percent{0, money.WholePercent(10), money.MaxPercent}

	succeeded := 0
	for _, lines := range lineSets {
		for _, surcharges := range surchargeSets {
			for _, flat := range flats {
				for _, percent := range percents {
					totals, err := AggregateBillWithOptions(lines, BillOptions{DiscountPercent: percent, DiscountAmount: flat, Surcharges: surcharges})
					if err != nil {
						require.ErrorIs(t, err, ErrValidation)
						require.EqualError(t, err, "amount overflows")
						continue
					}
					succeeded++
					requireNetInvariant(t, totals)
					require.False(t, totals.BillDiscountAmount.GreaterThan(totals.PreBillDiscountNet))
					if totals.Warning != nil {
						require.True(t, totals.Warning.Requested.GreaterThan(totals.PreBillDiscountNet))
						require.Equal(t, totals.PreBillDiscountNet, totals.Warning.Applied)
					} else {
						require.Equal(t, totals.PreBillDiscountNet.PercentOf(percent).Add(flat), totals.BillDiscountAmount)
					}
				}
			}
		}
	}
	require.NotZero(t, succeeded)
}
