package admin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/plan-configurator/internal/auth"
	"github.com/noah-isme/plan-configurator/internal/common"
)

// Handler exposes admin account and API key management.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Routes mounts the admin and API key endpoints on r, guarded by their permissions.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermAdminsWrite))
		r.Get("/admins", h.ListAdmins)
		r.Post("/admins", h.CreateAdmin)
		r.Put("/admins/{id}", h.UpdateAdmin)
		r.Delete("/admins/{id}", h.DeleteAdmin)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(auth.PermAPIKeysWrite))
		r.Get("/api-keys", h.ListAPIKeys)
		r.Post("/api-keys", h.CreateAPIKey)
		r.Delete("/api-keys/{id}", h.RevokeAPIKey)
	})
}

// ListAdmins handles GET /api/admin/admins.
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	items, err := h.service.ListAdmins(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// CreateAdmin handles POST /api/admin/admins.
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CreateAdminInput
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.service.CreateAdmin(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// UpdateAdmin handles PUT /api/admin/admins/{id}.
func (h *Handler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in UpdateAdminInput
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.service.UpdateAdmin(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

// DeleteAdmin handles DELETE /api/admin/admins/{id}.
func (h *Handler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.service.DeleteAdmin(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAPIKeys handles GET /api/admin/api-keys.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	items, err := h.service.ListAPIKeys(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// CreateAPIKey handles POST /api/admin/api-keys. The response is the only time the raw key is shown.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CreateAPIKeyInput
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	key, err := h.service.CreateAPIKey(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	common.Data(w, http.StatusCreated, key)
}

// RevokeAPIKey handles DELETE /api/admin/api-keys/{id}.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.service.RevokeAPIKey(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin service not configured", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, ErrEmailTaken):
		common.JSONError(w, http.StatusConflict, "EMAIL_ALREADY_USED", "email is already registered", nil)
	case errors.Is(err, ErrSelfDelete):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "cannot delete the signed-in admin", nil)
	default:
		common.WriteError(w, err)
	}
}
