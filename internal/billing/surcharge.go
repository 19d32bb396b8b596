package billing

import (
	"fmt"

	"github.com/noah-isme/medbill/internal/money"
)

// Surcharge is a flat fee added after all percentage math. It is never taxed or discounted.
type Surcharge struct {
	Code   string      `json:"code,omitempty"`
	Name   string      `json:"name"`
	Amount money.Money `json:"amount"`
}

func totalSurcharges(surcharges []Surcharge) (money.Money, error) {
	amounts := make([]money.Money, len(surcharges))
	for i, s := range surcharges {
		if s.Amount.IsNegative() {
			return 0, invalid(fmt.Sprintf("surcharges[%d].amount", i), msgNegativeSurcharge)
		}
		amounts[i] = s.Amount
	}
	total, ok := money.Sum(amounts...)
	if !ok {
		return 0, invalid("surcharges", msgAmountOverflow)
	}
	return total, nil
}
