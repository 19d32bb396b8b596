// Package quote prices line items and bills against the charge master and reports payment state.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/chargemaster"
	"github.com/noah-isme/medbill/internal/money"
	"github.com/noah-isme/medbill/internal/obs"
	"github.com/noah-isme/medbill/internal/surcharge"
)

const (
	kindLine    = "line"
	kindBill    = "bill"
	kindPayment = "payment"
)

// ChargeSource resolves catalog charges, normally *chargemaster.Service.
type ChargeSource interface {
	Get(ctx context.Context, module billing.Module, id string) (billing.CatalogCharge, error)
	GetMany(ctx context.Context, module billing.Module, ids []string) ([]billing.CatalogCharge, error)
	List(ctx context.Context, module billing.Module) ([]billing.CatalogCharge, error)
}

// LineRequest is a single row to price.
type LineRequest struct {
	ChargeID        string
	Quantity        int
	DiscountPercent money.Percent
}

// BillRequest is a full bill to price.
type BillRequest struct {
	Items               []LineRequest
	BillDiscountPercent money.Percent
	BillDiscountAmount  money.Money
	SurchargeCodes      []string
	AdHocSurcharges     []billing.Surcharge
	AmountPaid          money.Money
	MarkPaid            bool
}

// BillQuote is a priced bill.
type BillQuote struct {
	ID         string
	Module     billing.Module
	Lines      []billing.LineItemBreakdown
	Surcharges []billing.Surcharge
	Totals     billing.BillTotals
	Payment    billing.PaymentState
	QuotedAt   time.Time
}

// Service computes quotes. It holds no per-bill state and is safe for concurrent use.
type Service struct {
	charges ChargeSource
	fees    *surcharge.Catalog
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Charges ChargeSource
	Fees    *surcharge.Catalog
	Logger  zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Charges == nil {
		return nil, errors.New("charge source is required")
	}
	fees := cfg.Fees
	if fees == nil {
		var err error
		if fees, err = surcharge.FromConfig(nil); err != nil {
			return nil, err
		}
	}
	return &Service{
		charges: cfg.Charges,
		fees:    fees,
		logger:  cfg.Logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Charge returns one normalised catalog charge.
func (s *Service) Charge(ctx context.Context, module billing.Module, id string) (billing.CatalogCharge, error) {
	return s.charges.Get(ctx, module, id)
}

// Charges lists the active module catalog.
func (s *Service) Charges(ctx context.Context, module billing.Module) ([]billing.CatalogCharge, error) {
	return s.charges.List(ctx, module)
}

// Surcharges lists the module fee catalog.
func (s *Service) Surcharges(module billing.Module) []surcharge.Fee {
	return s.fees.List(module)
}

// QuoteLine prices a single row.
func (s *Service) QuoteLine(ctx context.Context, module billing.Module, req LineRequest) (line billing.LineItemBreakdown, err error) {
	ctx, span := otel.Tracer("quote.Service").Start(ctx, "QuoteService.QuoteLine")
	defer span.End()
	defer func() { record(span, module, kindLine, err) }()
	span.SetAttributes(attribute.String("charge.id", req.ChargeID), attribute.Int("line.quantity", req.Quantity))

	charge, err := s.charges.Get(ctx, module, req.ChargeID)
	if err != nil {
		return billing.LineItemBreakdown{}, err
	}
	return billing.ComputeLineItem(charge, req.Quantity, req.DiscountPercent)
}

// QuoteBill prices every row, applies bill adjustments and resolves payment state.
func (s *Service) QuoteBill(ctx context.Context, module billing.Module, req BillRequest) (quote BillQuote, err error) {
	ctx, span := otel.Tracer("quote.Service").Start(ctx, "QuoteService.QuoteBill")
	defer span.End()
	defer func() { record(span, module, kindBill, err) }()
	span.SetAttributes(attribute.Int("bill.lines", len(req.Items)))

	surcharges, err := s.fees.Resolve(module, req.SurchargeCodes)
	if err != nil {
		return BillQuote{}, err
	}
	for i, extra := range req.AdHocSurcharges {
		if strings.TrimSpace(extra.Name) == "" {
			return BillQuote{}, billing.NewValidationError(fmt.Sprintf("adHocSurcharges[%d].name", i), "surcharge name is required")
		}
		if extra.Amount.IsNegative() {
			return BillQuote{}, billing.NewValidationError(fmt.Sprintf("adHocSurcharges[%d].amount", i), "surcharge amount must not be negative")
		}
		surcharges = append(surcharges, extra)
	}

	draft := billing.NewDraft()
	ids := make([]string, 0, len(req.Items))
	for i, item := range req.Items {
		if _, err := draft.Add(item.ChargeID, item.Quantity, item.DiscountPercent); err != nil {
			return BillQuote{}, withFieldPrefix(err, fmt.Sprintf("items[%d].", i))
		}
		ids = append(ids, item.ChargeID)
	}
	charges, err := s.charges.GetMany(ctx, module, ids)
	if err != nil {
		return BillQuote{}, err
	}

	draft.BillDiscountPercent = req.BillDiscountPercent
	draft.BillDiscountAmount = req.BillDiscountAmount
	draft.Surcharges = surcharges
	draft.MarkedPaid = req.MarkPaid
	draft.AmountPaid = req.AmountPaid

	bill, err := draft.Compute(billing.ChargesByID(charges...))
	if err != nil {
		return BillQuote{}, requestField(err)
	}
	if !req.MarkPaid {
		if err := billing.ValidatePayment(bill.Totals.NetAmount, req.AmountPaid); err != nil {
			return BillQuote{}, err
		}
	}

	if w := bill.Totals.Warning; w != nil {
		s.logger.Warn().
			Str("module", string(module)).
			Int64("requested_minor", w.Requested.Minor()).
			Int64("applied_minor", w.Applied.Minor()).
			Msg("bill discount clamped to total")
		if obs.DiscountClampedTotal != nil {
			obs.DiscountClampedTotal.WithLabelValues(string(module)).Inc()
		}
	}
	if obs.BillNetAmount != nil {
		obs.BillNetAmount.WithLabelValues(string(module)).Observe(float64(bill.Totals.NetAmount.Minor()) / money.Scale)
	}

	quote = BillQuote{
		ID:         s.newID(),
		Module:     module,
		Lines:      bill.Lines,
		Surcharges: surcharges,
		Totals:     bill.Totals,
		Payment:    bill.Payment,
		QuotedAt:   s.now().UTC(),
	}
	span.SetAttributes(
		attribute.String("quote.id", quote.ID),
		attribute.Int64("bill.net_minor", quote.Totals.NetAmount.Minor()),
		attribute.String("bill.payment_status", string(quote.Payment.Status)),
	)
	return quote, nil
}

// ResolvePayment validates a payment against a net amount and derives its status.
func (s *Service) ResolvePayment(ctx context.Context, netAmount, amountPaid money.Money) (state billing.PaymentState, err error) {
	_, span := otel.Tracer("quote.Service").Start(ctx, "QuoteService.ResolvePayment")
	defer span.End()
	defer func() { record(span, "", kindPayment, err) }()

	if netAmount.IsNegative() {
		return billing.PaymentState{}, billing.NewValidationError("netAmount", "net amount must not be negative")
	}
	if err := billing.ValidatePayment(netAmount, amountPaid); err != nil {
		return billing.PaymentState{}, err
	}
	return billing.ResolvePaymentStatus(netAmount, amountPaid), nil
}

func record(span trace.Span, module billing.Module, kind string, err error) {
	result := resultLabel(err)
	span.SetAttributes(attribute.String("quote.kind", kind), attribute.String("quote.result", result))
	if module != "" {
		span.SetAttributes(attribute.String("billing.module", string(module)))
	}
	if result == "error" {
		span.RecordError(err)
	}
	if obs.QuotesTotal != nil {
		label := string(module)
		if label == "" {
			label = "none"
		}
		obs.QuotesTotal.WithLabelValues(label, kind, result).Inc()
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, billing.ErrValidation):
		return "invalid"
	case errors.Is(err, chargemaster.ErrChargeNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// requestField renames draft line fields to the request's items[i] form. Draft rows are
// added in request order, so the indexes line up.
func requestField(err error) error {
	var v *billing.ValidationError
	if errors.As(err, &v) && strings.HasPrefix(v.Field, "lineItems[") {
		return billing.NewValidationError("items["+strings.TrimPrefix(v.Field, "lineItems["), v.Message)
	}
	return err
}

func withFieldPrefix(err error, prefix string) error {
	var v *billing.ValidationError
	if errors.As(err, &v) {
		return billing.NewValidationError(prefix+v.Field, v.Message)
	}
	return err
}
