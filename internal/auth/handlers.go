package auth

import (
	"net/http"
	"time"

	"github.com/noah-isme/plan-configurator/internal/common"
)

// Handler exposes the admin session endpoints.
type Handler struct {
	Service        *Service
	CookieName     string
	CSRFCookieName string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/admin/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	csrf, err := common.RandomToken(32)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.setCookie(w, h.cookieName(), result.Token, result.ExpiresAt, true)
	h.setCookie(w, h.csrfCookieName(), csrf, result.ExpiresAt, false)
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"admin":     result.Admin,
			"expiresAt": result.ExpiresAt,
			"csrfToken": csrf,
		},
	})
}

// Logout handles POST /api/admin/logout. Session tokens are stateless, so
// logging out only clears the cookies.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.clearCookie(w, h.cookieName(), true)
	h.clearCookie(w, h.csrfCookieName(), false)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/admin/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	adminID, ok := common.AdminID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "admin session required", nil)
		return
	}
	admin, err := h.Service.Me(r.Context(), adminID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, admin)
}

func (h *Handler) cookieName() string {
	if h.CookieName == "" {
		return "admin_session"
	}
	return h.CookieName
}

func (h *Handler) csrfCookieName() string {
	if h.CSRFCookieName == "" {
		return "admin_csrf"
	}
	return h.CSRFCookieName
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, expires time.Time, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   h.CookieDomain,
		Path:     "/",
		Expires:  expires,
		HttpOnly: httpOnly,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   h.CookieDomain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}


