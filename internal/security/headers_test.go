package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serve(h Headers, req *http.Request) http.Header {
	rr := httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr.Result().Header
}

func TestHeadersHSTSOnlyOverTLS(t *testing.T) {
	h := Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true}

	req := httptest.NewRequest(http.MethodGet, "https://plans.example.com/api/products", nil)
	req.TLS = &tls.ConnectionState{}
	got := serve(h, req)
	require.Equal(t, "nosniff", got.Get("X-Content-Type-Options"))
	require.Equal(t, "max-age=31536000; includeSubDomains", got.Get("Strict-Transport-Security"))

	got = serve(h, httptest.NewRequest(http.MethodGet, "http://plans.example.com/api/products", nil))
	require.Empty(t, got.Get("Strict-Transport-Security"))
}

func TestHeadersDisabled(t *testing.T) {
	got := serve(Headers{EnableHSTS: true}, httptest.NewRequest(http.MethodGet, "http://example.com/api/products", nil))
	require.Empty(t, got.Get("X-Content-Type-Options"))
	require.Empty(t, got.Get("Cache-Control"))
}

func TestHeadersNoStorePrefixes(t *testing.T) {
	got := serve(Headers{Enable: true}, httptest.NewRequest(http.MethodPost, "http://example.com/api/residential-verify-otp", nil))
	require.Equal(t, "no-store", got.Get("Cache-Control"))

	got = serve(Headers{Enable: true}, httptest.NewRequest(http.MethodGet, "http://example.com/health/live", nil))
	require.Empty(t, got.Get("Cache-Control"))
	require.Equal(t, "default-src 'none'; frame-ancestors 'none'", got.Get("Content-Security-Policy"))

	custom := Headers{Enable: true, NoStorePrefixes: []string{"/metrics"}}
	got = serve(custom, httptest.NewRequest(http.MethodGet, "http://example.com/metrics", nil))
	require.Equal(t, "no-store", got.Get("Cache-Control"))
}
