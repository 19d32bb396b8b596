package billing

import "github.com/noah-isme/medbill/internal/money"

// PaymentStatus is the derived settlement state of a bill.
type PaymentStatus string

const (
	StatusPending       PaymentStatus = "pending"
	StatusPartiallyPaid PaymentStatus = "partially_paid"
	StatusPaid          PaymentStatus = "paid"
)

// PaymentState is the resolved payment view of a bill. AmountPaid is already clamped.
type PaymentState struct {
	NetAmount  money.Money
	AmountPaid money.Money
	BalanceDue money.Money
	Status     PaymentStatus
}

// ResolvePaymentStatus derives status and balance from the net amount and payments so far.
// Payments above the net amount are clamped here; rejecting them is ValidatePayment's job.
func ResolvePaymentStatus(netAmount, amountPaid money.Money) PaymentState {
	ceiling := money.Max(netAmount, 0)
	paid := amountPaid.Clamp(0, ceiling)

	status := StatusPaid
	switch {
	case amountPaid <= 0:
		status = StatusPending
	case amountPaid.LessThan(netAmount):
		status = StatusPartiallyPaid
	}
	return PaymentState{
		NetAmount:  netAmount,
		AmountPaid: paid,
		BalanceDue: ceiling.Sub(paid),
		Status:     status,
	}
}

// MarkPaid resolves the state after the user ticks "mark as paid".
func MarkPaid(netAmount money.Money) PaymentState {
	return ResolvePaymentStatus(netAmount, netAmount)
}

// ValidatePayment rejects payments that cannot be recorded through the engine.
func ValidatePayment(netAmount, amountPaid money.Money) error {
	if amountPaid.IsNegative() {
		return invalid("amountPaid", msgNegativePayment)
	}
	if amountPaid.GreaterThan(money.Max(netAmount, 0)) {
		return invalid("amountPaid", msgOverpayment)
	}
	return nil
}
