package billing

import (
	"fmt"

	"github.com/noah-isme/medbill/internal/money"
)

// BillTotals aggregates line breakdowns into bill-level amounts.
// NetAmount == Subtotal - TotalDiscount + TaxTotal + SurchargeTotal always holds.
type BillTotals struct {
	Subtotal           money.Money
	LineDiscountTotal  money.Money
	TaxTotal           money.Money
	PreBillDiscountNet money.Money
	BillDiscountAmount money.Money
	TotalDiscount      money.Money
	SurchargeTotal     money.Money
	NetAmount          money.Money

	// Warning is set when the requested bill discount was clamped.
	Warning *DiscountExceedsTotalWarning
}

// BillOptions carries the bill-level adjustments layered on top of the line items.
type BillOptions struct {
	DiscountPercent money.Percent
	// DiscountAmount is a flat discount added to the percentage discount before clamping.
	DiscountAmount money.Money
	Surcharges     []Surcharge
}

// AggregateBill folds line items into bill totals, applying a bill-wide discount percent to the
// discounted, taxed line total and then adding flat surcharges.
func AggregateBill(items []LineItemBreakdown, billDiscountPercent money.Percent, surcharges []Surcharge) (BillTotals, error) {
	return AggregateBillWithOptions(items, BillOptions{DiscountPercent: billDiscountPercent, Surcharges: surcharges})
}

// AggregateBillWithOptions is AggregateBill with an optional flat bill discount.
func AggregateBillWithOptions(items []LineItemBreakdown, opts BillOptions) (BillTotals, error) {
	if !opts.DiscountPercent.InRange() {
		return BillTotals{}, invalid("billDiscountPercent", msgPercentOutOfRange)
	}
	if opts.DiscountAmount.IsNegative() {
		return BillTotals{}, invalid("billDiscountAmount", msgNegativeDiscount)
	}
	surchargeTotal, err := totalSurcharges(opts.Surcharges)
	if err != nil {
		return BillTotals{}, err
	}

	var totals BillTotals
	for i, it := range items {
		if !it.consistent() {
			return BillTotals{}, invalid(fmt.Sprintf("lineItems[%d]", i), msgInconsistentLine)
		}
		var okBase, okDiscount, okTax bool
		totals.Subtotal, okBase = totals.Subtotal.AddChecked(it.BaseAmount)
		totals.LineDiscountTotal, okDiscount = totals.LineDiscountTotal.AddChecked(it.DiscountAmount)
		totals.TaxTotal, okTax = totals.TaxTotal.AddChecked(it.TaxAmount)
		if !okBase || !okDiscount || !okTax {
			return BillTotals{}, invalid("lineItems", msgAmountOverflow)
		}
	}
	// Line discounts never exceed their base, so the subtraction cannot wrap.
	preNet, ok := totals.Subtotal.Sub(totals.LineDiscountTotal).AddChecked(totals.TaxTotal)
	if !ok {
		return BillTotals{}, invalid("lineItems", msgAmountOverflow)
	}
	totals.PreBillDiscountNet = preNet

	// The percentage part is at most preNet; only the flat part can push past it.
	percentPart := preNet.PercentOf(opts.DiscountPercent)
	requested, ok := percentPart.AddChecked(opts.DiscountAmount)
	if !ok {
		return BillTotals{}, invalid("billDiscountAmount", msgAmountOverflow)
	}
	applied := money.Min(requested, preNet)
	if opts.DiscountAmount.GreaterThan(preNet.Sub(percentPart)) {
		totals.Warning = &DiscountExceedsTotalWarning{Requested: requested, Applied: applied}
	}
	totals.BillDiscountAmount = applied
	if totals.TotalDiscount, ok = totals.LineDiscountTotal.AddChecked(applied); !ok {
		return BillTotals{}, invalid("billDiscountAmount", msgAmountOverflow)
	}
	totals.SurchargeTotal = surchargeTotal
	if totals.NetAmount, ok = preNet.Sub(applied).AddChecked(surchargeTotal); !ok {
		return BillTotals{}, invalid("surcharges", msgAmountOverflow)
	}
	return totals, nil
}
