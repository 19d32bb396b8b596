package billing

import (
	"github.com/noah-isme/medbill/internal/money"
)

// CatalogCharge is the normalised charge-master entry a line item is priced from.
type CatalogCharge struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	UnitPrice  money.Money   `json:"unitPrice"`
	TaxPercent money.Percent `json:"taxPercent"`
}

// LineItemBreakdown is the derived pricing of one bill row.
type LineItemBreakdown struct {
	CatalogChargeID string
	Name            string
	UnitPrice       money.Money
	Quantity        int
	DiscountPercent money.Percent
	TaxPercent      money.Percent

	BaseAmount     money.Money
	DiscountAmount money.Money
	TaxableAmount  money.Money
	TaxAmount      money.Money
	LineTotal      money.Money
}

// ComputeLineItem prices a catalog charge for the given quantity and discount.
// Discount is applied before tax; tax is charged on the discounted amount.
func ComputeLineItem(charge CatalogCharge, quantity int, discountPercent money.Percent) (LineItemBreakdown, error) {
	if quantity <= 0 {
		return LineItemBreakdown{}, invalid("quantity", msgQuantityNotPositive)
	}
	if !discountPercent.InRange() {
		return LineItemBreakdown{}, invalid("discountPercent", msgPercentOutOfRange)
	}
	if !charge.TaxPercent.InRange() {
		return LineItemBreakdown{}, invalid("taxPercent", msgPercentOutOfRange)
	}
	if charge.UnitPrice.IsNegative() {
		return LineItemBreakdown{}, invalid("unitPrice", msgNegativeUnitPrice)
	}

	base, ok := charge.UnitPrice.Mul(int64(quantity))
	if !ok {
		return LineItemBreakdown{}, invalid("quantity", msgAmountOverflow)
	}
	discount := base.PercentOf(discountPercent)
	taxable := base.Sub(discount)
	tax := taxable.PercentOf(charge.TaxPercent)
	lineTotal, ok := taxable.AddChecked(tax)
	if !ok {
		return LineItemBreakdown{}, invalid("unitPrice", msgAmountOverflow)
	}

	return LineItemBreakdown{
		CatalogChargeID: charge.ID,
		Name:            charge.Name,
		UnitPrice:       charge.UnitPrice,
		Quantity:        quantity,
		DiscountPercent: discountPercent,
		TaxPercent:      charge.TaxPercent,
		BaseAmount:      base,
		DiscountAmount:  discount,
		TaxableAmount:   taxable,
		TaxAmount:       tax,
		LineTotal:       lineTotal,
	}, nil
}

// consistent reports whether the derived amounts still satisfy the calculator's identities.
func (b LineItemBreakdown) consistent() bool {
	if b.BaseAmount.IsNegative() || b.DiscountAmount.IsNegative() || b.TaxAmount.IsNegative() {
		return false
	}
	if b.DiscountAmount.GreaterThan(b.BaseAmount) {
		return false
	}
	total, ok := b.TaxableAmount.AddChecked(b.TaxAmount)
	return ok && b.TaxableAmount == b.BaseAmount.Sub(b.DiscountAmount) && b.LineTotal == total
}
