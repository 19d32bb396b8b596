package quote

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Warnings []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"warnings"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	h := &Handler{Service: newTestService(t, testCharges()), Validate: NewValidator()}
	r := chi.NewRouter()
	r.Route("/api/v1", func(v chi.Router) {
		v.Post("/payments/resolve", h.ResolvePayment)
		v.Route("/{module}", func(m chi.Router) {
			m.Post("/line-items/quote", h.QuoteLine)
			m.Post("/bills/quote", h.QuoteBill)
			m.Get("/surcharges", h.Surcharges)
			m.Get("/charges", h.Charges)
			m.Get("/charges/{id}", h.Charge)
		})
	})
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr, env
}

func TestQuoteLineHandler(t *testing.T) {
	router := newTestRouter(t)

	rr, env := do(t, router, http.MethodPost, "/api/v1/opd/line-items/quote",
		`{"chargeId":"consult","quantity":1,"discountPercent":"10"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var line lineResponse
	require.NoError(t, json.Unmarshal(env.Data, &line))
	require.EqualValues(t, 3000, line.DiscountAmount)
	require.EqualValues(t, 4860, line.TaxAmount)
	require.EqualValues(t, 31860, line.LineTotal)
	require.Equal(t, "318.60", line.Display.LineTotal)
	require.Equal(t, "18", line.TaxPercent.String())
}

func TestQuoteBillHandlerWarnsOnClamp(t *testing.T) {
	router := newTestRouter(t)

	rr, env := do(t, router, http.MethodPost, "/api/v1/ambulance/bills/quote", `{
		"items":[{"chargeId":"als","quantity":1}],
		"billDiscountPercent":"100",
		"billDiscountAmount":500,
		"surcharges":["DISPATCH"]
	}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, env.Warnings, 1)
	require.Equal(t, "DISCOUNT_EXCEEDS_TOTAL", env.Warnings[0].Code)
	require.True(t, strings.HasPrefix(env.Warnings[0].Message, "discount cannot exceed total charge"))

	var bill billResponse
	require.NoError(t, json.Unmarshal(env.Data, &bill))
	require.EqualValues(t, 50000, bill.Totals.NetAmount)
	require.Equal(t, "500.00", bill.Totals.Display.NetAmount)
	require.Equal(t, "quote-1", bill.ID)
	require.Len(t, bill.Surcharges, 1)
}

func TestQuoteBillHandlerValidationErrors(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing charge id", `{"items":[{"quantity":1}]}`, "items[0].chargeId"},
		{"zero quantity", `{"items":[{"chargeId":"consult","quantity":0}]}`, "items[0].quantity"},
		{"percent with three places", `{"items":[{"chargeId":"consult","quantity":1,"discountPercent":"1.005"}]}`, "items[0].discountPercent"},
		{"bill discount out of range", `{"items":[{"chargeId":"consult","quantity":1}],"billDiscountPercent":"150"}`, "billDiscountPercent"},
		{"overpayment", `{"items":[{"chargeId":"consult","quantity":1}],"amountPaid":99999999}`, "amountPaid"},
		{"ad hoc without name", `{"adHocSurcharges":[{"amount":100}]}`, "adHocSurcharges[0].name"},
		{"flat discount overflows", `{"items":[{"chargeId":"consult","quantity":1}],"billDiscountPercent":"10","billDiscountAmount":9223372036854775807}`, "billDiscountAmount"},
		{"ad hoc surcharges overflow", `{"adHocSurcharges":[{"name":"a","amount":9223372036854775807},{"name":"b","amount":1}]}`, "surcharges"},
		{"huge quantity", `{"items":[{"chargeId":"consult","quantity":9223372036854775807}]}`, "items[0].quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, env := do(t, router, http.MethodPost, "/api/v1/opd/bills/quote", tc.body)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			require.NotNil(t, env.Error)
			require.Equal(t, "VALIDATION_FAILED", env.Error.Code)
			require.NotEmpty(t, env.Error.Details)
			require.Equal(t, tc.field, env.Error.Details[0].Field)
		})
	}
}

func TestQuoteHandlersMapErrors(t *testing.T) {
	router := newTestRouter(t)

	rr, env := do(t, router, http.MethodPost, "/api/v1/opd/line-items/quote", `{"chargeId":"nope","quantity":1}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "CHARGE_NOT_FOUND", env.Error.Code)

	rr, env = do(t, router, http.MethodPost, "/api/v1/pharmacy/line-items/quote", `{"chargeId":"consult","quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)

	rr, env = do(t, router, http.MethodPost, "/api/v1/opd/line-items/quote", `{"chargeId":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestResolvePaymentHandler(t *testing.T) {
	router := newTestRouter(t)

	rr, env := do(t, router, http.MethodPost, "/api/v1/payments/resolve", `{"netAmount":35400,"amountPaid":10000}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var state paymentResponse
	require.NoError(t, json.Unmarshal(env.Data, &state))
	require.Equal(t, "partially_paid", string(state.Status))
	require.EqualValues(t, 25400, state.BalanceDue)
	require.Equal(t, "254.00", state.Display["balanceDue"])

	rr, env = do(t, router, http.MethodPost, "/api/v1/payments/resolve", `{"netAmount":100,"amountPaid":101}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "amount paid exceeds net amount", env.Error.Message)

	rr, env = do(t, router, http.MethodPost, "/api/v1/payments/resolve", `{"amountPaid":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "netAmount", env.Error.Details[0].Field)
}

func TestSurchargesAndChargeHandlers(t *testing.T) {
	router := newTestRouter(t)

	rr, env := do(t, router, http.MethodGet, "/api/v1/radiology/surcharges", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var fees []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &fees))
	require.Len(t, fees, 1)
	require.Equal(t, "HOME_COLLECTION", fees[0]["code"])
	require.Equal(t, "100.00", fees[0]["display"])

	rr, env = do(t, router, http.MethodGet, "/api/v1/opd/charges/consult", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var charge map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &charge))
	require.EqualValues(t, 30000, charge["unitPrice"])
	require.Equal(t, "18", charge["taxPercent"])
}

func TestChargesHandlerListsModuleCatalog(t *testing.T) {
	router := newTestRouter(t)

	rr, env := do(t, router, http.MethodGet, "/api/v1/ambulance/charges", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var charges []chargeResponse
	require.NoError(t, json.Unmarshal(env.Data, &charges))
	require.Len(t, charges, 1)
	require.Equal(t, "als", charges[0].ID)
	require.Equal(t, "2500.00", charges[0].Display["unitPrice"])
	require.Equal(t, "5", charges[0].TaxPercent.String())

	rr, env = do(t, router, http.MethodGet, "/api/v1/radiology/charges", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, "[]", string(env.Data))
}
