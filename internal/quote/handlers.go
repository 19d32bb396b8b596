package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/chargemaster"
	"github.com/noah-isme/medbill/internal/common"
	"github.com/noah-isme/medbill/internal/money"
	"github.com/noah-isme/medbill/internal/surcharge"
)

// Handler exposes the quote REST endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type lineRequest struct {
	ChargeID        string `json:"chargeId" validate:"required,max=64"`
	Quantity        int    `json:"quantity"`
	DiscountPercent string `json:"discountPercent" validate:"max=16"`
}

type adHocSurchargeRequest struct {
	Name   string `json:"name" validate:"required,max=120"`
	Amount int64  `json:"amount"`
}

type billRequest struct {
	Items               []lineRequest           `json:"items" validate:"max=200,dive"`
	BillDiscountPercent string                  `json:"billDiscountPercent" validate:"max=16"`
	BillDiscountAmount  int64                   `json:"billDiscountAmount"`
	Surcharges          []string                `json:"surcharges" validate:"max=20,dive,required,max=64"`
	AdHocSurcharges     []adHocSurchargeRequest `json:"adHocSurcharges" validate:"max=20,dive"`
	AmountPaid          int64                   `json:"amountPaid"`
	MarkPaid            bool                    `json:"markPaid"`
}

type paymentRequest struct {
	NetAmount  *int64 `json:"netAmount" validate:"required"`
	AmountPaid int64  `json:"amountPaid"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type lineDisplay struct {
	UnitPrice      string `json:"unitPrice"`
	BaseAmount     string `json:"baseAmount"`
	DiscountAmount string `json:"discountAmount"`
	TaxableAmount  string `json:"taxableAmount"`
	TaxAmount      string `json:"taxAmount"`
	LineTotal      string `json:"lineTotal"`
}

type lineResponse struct {
	ChargeID        string        `json:"chargeId"`
	Name            string        `json:"name"`
	UnitPrice       money.Money   `json:"unitPrice"`
	Quantity        int           `json:"quantity"`
	DiscountPercent money.Percent `json:"discountPercent"`
	TaxPercent      money.Percent `json:"taxPercent"`
	BaseAmount      money.Money   `json:"baseAmount"`
	DiscountAmount  money.Money   `json:"discountAmount"`
	TaxableAmount   money.Money   `json:"taxableAmount"`
	TaxAmount       money.Money   `json:"taxAmount"`
	LineTotal       money.Money   `json:"lineTotal"`
	Display         lineDisplay   `json:"display"`
}

type totalsDisplay struct {
	Subtotal       string `json:"subtotal"`
	TotalDiscount  string `json:"totalDiscount"`
	TaxTotal       string `json:"taxTotal"`
	SurchargeTotal string `json:"surchargeTotal"`
	NetAmount      string `json:"netAmount"`
}

type totalsResponse struct {
	Subtotal           money.Money   `json:"subtotal"`
	LineDiscountTotal  money.Money   `json:"lineDiscountTotal"`
	TaxTotal           money.Money   `json:"taxTotal"`
	PreBillDiscountNet money.Money   `json:"preBillDiscountNet"`
	BillDiscountAmount money.Money   `json:"billDiscountAmount"`
	TotalDiscount      money.Money   `json:"totalDiscount"`
	SurchargeTotal     money.Money   `json:"surchargeTotal"`
	NetAmount          money.Money   `json:"netAmount"`
	Display            totalsDisplay `json:"display"`
}

type paymentResponse struct {
	NetAmount  money.Money           `json:"netAmount"`
	AmountPaid money.Money           `json:"amountPaid"`
	BalanceDue money.Money           `json:"balanceDue"`
	Status     billing.PaymentStatus `json:"status"`
	Display    map[string]string     `json:"display"`
}

type billResponse struct {
	ID         string              `json:"id"`
	Module     billing.Module      `json:"module"`
	Lines      []lineResponse      `json:"lines"`
	Surcharges []billing.Surcharge `json:"surcharges"`
	Totals     totalsResponse      `json:"totals"`
	Payment    paymentResponse     `json:"payment"`
	QuotedAt   time.Time           `json:"quotedAt"`
}

// QuoteLine handles POST /api/v1/{module}/line-items/quote.
func (h *Handler) QuoteLine(w http.ResponseWriter, r *http.Request) {
	module, ok := h.module(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if !h.decode(w, r, &req) {
		return
	}
	pct, err := parsePercentField("discountPercent", req.DiscountPercent)
	if err != nil {
		writeError(w, err)
		return
	}
	line, err := h.Service.QuoteLine(r.Context(), module, LineRequest{ChargeID: req.ChargeID, Quantity: req.Quantity, DiscountPercent: pct})
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, toLineResponse(line))
}

// QuoteBill handles POST /api/v1/{module}/bills/quote.
func (h *Handler) QuoteBill(w http.ResponseWriter, r *http.Request) {
	module, ok := h.module(w, r)
	if !ok {
		return
	}
	var req billRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := toBillRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	quote, err := h.Service.QuoteBill(r.Context(), module, in)
	if err != nil {
		writeError(w, err)
		return
	}
	var warnings []common.Warning
	if warn := quote.Totals.Warning; warn != nil {
		warnings = append(warnings, common.Warning{Code: warn.Code(), Message: warn.Error()})
	}
	common.Data(w, toBillResponse(quote), warnings...)
}

// ResolvePayment handles POST /api/v1/payments/resolve.
func (h *Handler) ResolvePayment(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.Service.ResolvePayment(r.Context(), money.FromMinor(*req.NetAmount), money.FromMinor(req.AmountPaid))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, toPaymentResponse(state))
}

// Surcharges handles GET /api/v1/{module}/surcharges.
func (h *Handler) Surcharges(w http.ResponseWriter, r *http.Request) {
	module, ok := h.module(w, r)
	if !ok {
		return
	}
	fees := h.Service.Surcharges(module)
	type feeResponse struct {
		surcharge.Fee
		Display string `json:"display"`
	}
	out := make([]feeResponse, 0, len(fees))
	for _, fee := range fees {
		out = append(out, feeResponse{Fee: fee, Display: fee.Amount.Format()})
	}
	common.Data(w, out)
}

// Charge handles GET /api/v1/{module}/charges/{id}.
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	module, ok := h.module(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "charge id is required", nil)
		return
	}
	charge, err := h.Service.Charge(r.Context(), module, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, toChargeResponse(charge))
}

// Charges handles GET /api/v1/{module}/charges.
func (h *Handler) Charges(w http.ResponseWriter, r *http.Request) {
	module, ok := h.module(w, r)
	if !ok {
		return
	}
	charges, err := h.Service.Charges(r.Context(), module)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]chargeResponse, 0, len(charges))
	for _, c := range charges {
		out = append(out, toChargeResponse(c))
	}
	common.Data(w, out)
}

type chargeResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	UnitPrice  money.Money       `json:"unitPrice"`
	TaxPercent money.Percent     `json:"taxPercent"`
	Display    map[string]string `json:"display"`
}

func toChargeResponse(c billing.CatalogCharge) chargeResponse {
	return chargeResponse{
		ID:         c.ID,
		Name:       c.Name,
		UnitPrice:  c.UnitPrice,
		TaxPercent: c.TaxPercent,
		Display:    map[string]string{"unitPrice": c.UnitPrice.Format()},
	}
}

func (h *Handler) module(w http.ResponseWriter, r *http.Request) (billing.Module, bool) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return "", false
	}
	module, err := billing.ParseModule(chi.URLParam(r, "module"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return "", false
	}
	return module, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return false
	}
	v := h.Validate
	if v == nil {
		v = NewValidator()
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
			return false
		}
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldError{Field: fieldPath(fe.Namespace()), Message: tagMessage(fe)})
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", details[0].Message, details)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	var verr *billing.ValidationError
	switch {
	case errors.As(err, &verr):
		err = common.NewAppError("VALIDATION_FAILED", verr.Message, http.StatusUnprocessableEntity, err).
			WithDetails([]fieldError{{Field: verr.Field, Message: verr.Message}})
	case errors.Is(err, chargemaster.ErrChargeNotFound):
		err = common.NewAppError("CHARGE_NOT_FOUND", err.Error(), http.StatusNotFound, err)
	}
	common.WriteError(w, err)
}

func parsePercentField(field, value string) (money.Percent, error) {
	pct, err := money.ParsePercent(value)
	if err != nil {
		return 0, billing.NewValidationError(field, "percent must be a decimal with at most two places")
	}
	return pct, nil
}

func toBillRequest(req billRequest) (BillRequest, error) {
	billPct, err := parsePercentField("billDiscountPercent", req.BillDiscountPercent)
	if err != nil {
		return BillRequest{}, err
	}
	out := BillRequest{
		Items:               make([]LineRequest, 0, len(req.Items)),
		BillDiscountPercent: billPct,
		BillDiscountAmount:  money.FromMinor(req.BillDiscountAmount),
		SurchargeCodes:      req.Surcharges,
		AmountPaid:          money.FromMinor(req.AmountPaid),
		MarkPaid:            req.MarkPaid,
	}
	for i, item := range req.Items {
		pct, err := parsePercentField(fmt.Sprintf("items[%d].discountPercent", i), item.DiscountPercent)
		if err != nil {
			return BillRequest{}, err
		}
		out.Items = append(out.Items, LineRequest{ChargeID: item.ChargeID, Quantity: item.Quantity, DiscountPercent: pct})
	}
	for _, extra := range req.AdHocSurcharges {
		out.AdHocSurcharges = append(out.AdHocSurcharges, billing.Surcharge{Name: strings.TrimSpace(extra.Name), Amount: money.FromMinor(extra.Amount)})
	}
	return out, nil
}

func toLineResponse(b billing.LineItemBreakdown) lineResponse {
	return lineResponse{
		ChargeID:        b.CatalogChargeID,
		Name:            b.Name,
		UnitPrice:       b.UnitPrice,
		Quantity:        b.Quantity,
		DiscountPercent: b.DiscountPercent,
		TaxPercent:      b.TaxPercent,
		BaseAmount:      b.BaseAmount,
		DiscountAmount:  b.DiscountAmount,
		TaxableAmount:   b.TaxableAmount,
		TaxAmount:       b.TaxAmount,
		LineTotal:       b.LineTotal,
		Display: lineDisplay{
			UnitPrice:      b.UnitPrice.Format(),
			BaseAmount:     b.BaseAmount.Format(),
			DiscountAmount: b.DiscountAmount.Format(),
			TaxableAmount:  b.TaxableAmount.Format(),
			TaxAmount:      b.TaxAmount.Format(),
			LineTotal:      b.LineTotal.Format(),
		},
	}
}

func toPaymentResponse(p billing.PaymentState) paymentResponse {
	return paymentResponse{
		NetAmount:  p.NetAmount,
		AmountPaid: p.AmountPaid,
		BalanceDue: p.BalanceDue,
		Status:     p.Status,
		Display: map[string]string{
			"netAmount":  p.NetAmount.Format(),
			"amountPaid": p.AmountPaid.Format(),
			"balanceDue": p.BalanceDue.Format(),
		},
	}
}

func toBillResponse(q BillQuote) billResponse {
	lines := make([]lineResponse, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, toLineResponse(l))
	}
	surcharges := q.Surcharges
	if surcharges == nil {
		surcharges = []billing.Surcharge{}
	}
	t := q.Totals
	return billResponse{
		ID:         q.ID,
		Module:     q.Module,
		Lines:      lines,
		Surcharges: surcharges,
		Totals: totalsResponse{
			Subtotal:           t.Subtotal,
			LineDiscountTotal:  t.LineDiscountTotal,
			TaxTotal:           t.TaxTotal,
			PreBillDiscountNet: t.PreBillDiscountNet,
			BillDiscountAmount: t.BillDiscountAmount,
			TotalDiscount:      t.TotalDiscount,
			SurchargeTotal:     t.SurchargeTotal,
			NetAmount:          t.NetAmount,
			Display: totalsDisplay{
				Subtotal:       t.Subtotal.Format(),
				TotalDiscount:  t.TotalDiscount.Format(),
				TaxTotal:       t.TaxTotal.Format(),
				SurchargeTotal: t.SurchargeTotal.Format(),
				NetAmount:      t.NetAmount.Format(),
			},
		},
		Payment:  toPaymentResponse(q.Payment),
		QuotedAt: q.QuotedAt,
	}
}

// fieldPath drops the struct name validator puts in front of the namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " exceeds the maximum of " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
