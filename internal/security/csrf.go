package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/plan-configurator/internal/common"
)

const codeCSRFFailed = "CSRF_FAILED"

// CSRF enforces the double-submit token for cookie-authenticated admin
// requests: the Header value must equal the CookieName cookie issued at login.
// API key callers and requests without a session cookie are not
// cookie-authenticated and pass through.
type CSRF struct {
	Header        string
	CookieName    string
	SessionCookie string
}

func (c CSRF) Middleware(next http.Handler) http.Handler {
	header := strings.TrimSpace(c.Header)
	if header == "" {
		header = "X-CSRF-Token"
	}
	cookieName := strings.TrimSpace(c.CookieName)
	if cookieName == "" {
		cookieName = header
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethod(r.Method) || !c.cookieAuthenticated(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(header))
		if token == "" {
			common.JSONError(w, http.StatusForbidden, codeCSRFFailed, "missing csrf token", nil)
			return
		}
		cookie, err := r.Cookie(cookieName)
		if err != nil || cookie.Value == "" {
			common.JSONError(w, http.StatusForbidden, codeCSRFFailed, "missing csrf cookie", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, codeCSRFFailed, "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c CSRF) cookieAuthenticated(r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get("X-API-Key")) != "" {
		return false
	}
	if c.SessionCookie == "" {
		return true
	}
	session, err := r.Cookie(c.SessionCookie)
	return err == nil && session.Value != ""
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
