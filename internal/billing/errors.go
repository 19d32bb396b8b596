package billing

import (
	"errors"
	"fmt"

	"github.com/noah-isme/medbill/internal/money"
)

const (
	msgQuantityNotPositive = "quantity must be positive"
	msgPercentOutOfRange   = "percent out of range"
	msgNegativeUnitPrice   = "unit price must not be negative"
	msgAmountOverflow      = "amount overflows"
	msgNegativeSurcharge   = "surcharge amount must not be negative"
	msgNegativeDiscount    = "discount amount must not be negative"
	msgInconsistentLine    = "line item breakdown is inconsistent"
	msgNegativePayment     = "amount paid must not be negative"
	msgOverpayment         = "amount paid exceeds net amount"
	msgUnknownCharge       = "unknown catalog charge"
)

var (
	// ErrValidation matches every *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrLineItemNotFound is returned when a draft operation references a missing line.
	ErrLineItemNotFound = errors.New("line item not found")
	// ErrLineItemLocked is returned when editing a line that downstream processing has locked.
	ErrLineItemLocked = errors.New("line item is locked")
)

// ValidationError reports an out-of-domain input. No computation happens once one is raised.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Is lets errors.Is(err, ErrValidation) match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for collaborators that validate bill inputs.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func invalid(field, message string) *ValidationError {
	return NewValidationError(field, message)
}

// DiscountExceedsTotalWarning is surfaced when a bill discount had to be clamped so the net
// amount stays non-negative. It does not block submission.
type DiscountExceedsTotalWarning struct {
	Requested money.Money
	Applied   money.Money
}

// Code is a stable identifier for API consumers.
func (w *DiscountExceedsTotalWarning) Code() string { return "DISCOUNT_EXCEEDS_TOTAL" }

// Error lets callers treat the warning as an error if they choose to block on it.
func (w *DiscountExceedsTotalWarning) Error() string {
	if w == nil {
		return ""
	}
	return fmt.Sprintf("discount cannot exceed total charge: requested %s, applied %s", w.Requested.Format(), w.Applied.Format())
}
