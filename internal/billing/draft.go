package billing

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/noah-isme/medbill/internal/money"
)

// LineItem is the user-editable input of one bill row.
type LineItem struct {
	ID              string        `json:"id"`
	CatalogChargeID string        `json:"catalogChargeId"`
	Quantity        int           `json:"quantity"`
	DiscountPercent money.Percent `json:"discountPercent"`
	// Locked items were processed downstream (e.g. a lab result was recorded) and are immutable.
	Locked bool `json:"locked"`
}

// ChargeLookup resolves a catalog charge by id.
type ChargeLookup func(id string) (CatalogCharge, bool)

// ChargesByID builds a ChargeLookup over already-fetched charges.
func ChargesByID(charges ...CatalogCharge) ChargeLookup {
	index := make(map[string]CatalogCharge, len(charges))
	for _, c := range charges {
		index[c.ID] = c
	}
	return func(id string) (CatalogCharge, bool) {
		c, ok := index[id]
		return c, ok
	}
}

// Bill is the result of recomputing a draft: every row, the totals and the payment state.
type Bill struct {
	Lines   []LineItemBreakdown
	Totals  BillTotals
	Payment PaymentState
}

// Draft is an in-memory bill being edited on a billing form. It stores inputs only; totals are
// produced by Compute on every call so they can never go stale.
type Draft struct {
	items   []LineItem
	nextSeq int

	BillDiscountPercent money.Percent
	BillDiscountAmount  money.Money
	Surcharges          []Surcharge
	AmountPaid          money.Money
	MarkedPaid          bool
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{}
}

// Items returns a copy of the draft rows in order.
func (d *Draft) Items() []LineItem {
	out := make([]LineItem, len(d.items))
	copy(out, d.items)
	return out
}

// Add appends a row and returns its id.
func (d *Draft) Add(chargeID string, quantity int, discountPercent money.Percent) (string, error) {
	if err := validateRow(quantity, discountPercent); err != nil {
		return "", err
	}
	d.nextSeq++
	id := "line-" + strconv.Itoa(d.nextSeq)
	d.items = append(d.items, LineItem{
		ID:              id,
		CatalogChargeID: chargeID,
		Quantity:        quantity,
		DiscountPercent: discountPercent,
	})
	return id, nil
}

// Update changes the quantity and discount of an unlocked row.
func (d *Draft) Update(id string, quantity int, discountPercent money.Percent) error {
	idx, err := d.editable(id)
	if err != nil {
		return err
	}
	if err := validateRow(quantity, discountPercent); err != nil {
		return err
	}
	d.items[idx].Quantity = quantity
	d.items[idx].DiscountPercent = discountPercent
	return nil
}

// Remove deletes an unlocked row.
func (d *Draft) Remove(id string) error {
	idx, err := d.editable(id)
	if err != nil {
		return err
	}
	d.items = append(d.items[:idx], d.items[idx+1:]...)
	return nil
}

// Lock freezes a row against further edits.
func (d *Draft) Lock(id string) error {
	idx := d.index(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrLineItemNotFound, id)
	}
	d.items[idx].Locked = true
	return nil
}

// Compute prices every row and aggregates the bill. Nothing is cached between calls.
func (d *Draft) Compute(lookup ChargeLookup) (Bill, error) {
	lines := make([]LineItemBreakdown, 0, len(d.items))
	for i, it := range d.items {
		charge, ok := lookup(it.CatalogChargeID)
		if !ok {
			return Bill{}, invalid(fmt.Sprintf("lineItems[%d].catalogChargeId", i), msgUnknownCharge)
		}
		line, err := ComputeLineItem(charge, it.Quantity, it.DiscountPercent)
		if err != nil {
			return Bill{}, prefixField(err, fmt.Sprintf("lineItems[%d].", i))
		}
		lines = append(lines, line)
	}
	totals, err := AggregateBillWithOptions(lines, BillOptions{
		DiscountPercent: d.BillDiscountPercent,
		DiscountAmount:  d.BillDiscountAmount,
		Surcharges:      d.Surcharges,
	})
	if err != nil {
		return Bill{}, err
	}
	payment := ResolvePaymentStatus(totals.NetAmount, d.AmountPaid)
	if d.MarkedPaid {
		payment = MarkPaid(totals.NetAmount)
	}
	return Bill{Lines: lines, Totals: totals, Payment: payment}, nil
}

func (d *Draft) index(id string) int {
	for i, it := range d.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (d *Draft) editable(id string) (int, error) {
	idx := d.index(id)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %s", ErrLineItemNotFound, id)
	}
	if d.items[idx].Locked {
		return -1, fmt.Errorf("%w: %s", ErrLineItemLocked, id)
	}
	return idx, nil
}

func validateRow(quantity int, discountPercent money.Percent) error {
	if quantity <= 0 {
		return invalid("quantity", msgQuantityNotPositive)
	}
	if !discountPercent.InRange() {
		return invalid("discountPercent", msgPercentOutOfRange)
	}
	return nil
}

func prefixField(err error, prefix string) error {
	var v *ValidationError
	if errors.As(err, &v) {
		return &ValidationError{Field: prefix + v.Field, Message: v.Message}
	}
	return err
}
