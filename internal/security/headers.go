package security

import (
	"net/http"
	"strconv"
	"time"
)

const defaultHSTSMaxAge = 365 * 24 * time.Hour

// apiHeaders are set on every response. The API only ever returns JSON, so nothing may be
// framed, sniffed or allowed to load sub-resources.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cross-Origin-Resource-Policy", "same-site"},
}

// Headers configures response headers for the billing API.
type Headers struct {
	EnableHSTS            bool
	HSTSMaxAge            time.Duration
	HSTSIncludeSubdomains bool
	// CacheControl defaults to "no-store": a quote is only valid against the charge master
	// and fee catalog at the moment it was computed.
	CacheControl string
}

func (h Headers) hstsValue() string {
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	value := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

// Middleware attaches the API header set to each response. HSTS is only sent over TLS.
func (h Headers) Middleware(next http.Handler) http.Handler {
	cacheControl := h.CacheControl
	if cacheControl == "" {
		cacheControl = "no-store"
	}
	hsts := h.hstsValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for _, kv := range apiHeaders {
			headers.Set(kv[0], kv[1])
		}
		headers.Set("Cache-Control", cacheControl)
		if h.EnableHSTS && r.TLS != nil {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
