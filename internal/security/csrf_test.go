package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func csrfHandler() http.Handler {
	return CSRF{Header: "X-CSRF-Token", SessionCookie: "admin_session"}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFBlocksCookieSessionWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: "jwt"})
	rr := httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), "CSRF_FAILED")
}

func TestCSRFAllowsMatchingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: "jwt"})
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "secure-token"})
	req.Header.Set("X-CSRF-Token", "secure-token")
	rr := httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFRejectsMismatchedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/products/1", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: "jwt"})
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "secure-token"})
	req.Header.Set("X-CSRF-Token", "other-token")
	rr := httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCSRFSkipsAPIKeyAndAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", nil)
	req.Header.Set("X-API-Key", "pk_live_abc")
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: "jwt"})
	rr := httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/admin/login", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFCustomCookieName(t *testing.T) {
	h := CSRF{Header: "X-CSRF-Token", CookieName: "admin_csrf", SessionCookie: "admin_session"}.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/admins/a1", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: "jwt"})
	req.AddCookie(&http.Cookie{Name: "admin_csrf", Value: "t0k"})
	req.Header.Set("X-CSRF-Token", "t0k")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: "jwt"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}
