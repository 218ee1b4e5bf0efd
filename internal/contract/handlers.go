package contract

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/plan-configurator/internal/common"
)

// Handler exposes contract submission and admin read endpoints.
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

// Submit returns the POST handler for a contract kind.
func (h *Handler) Submit(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.service == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "contract service not configured", nil)
			return
		}
		var in SubmitInput
		if err := common.DecodeJSON(r, &in); err != nil {
			h.writeError(w, err)
			return
		}
		receipt, err := h.service.Submit(r.Context(), kind, in)
		if err != nil {
			h.writeError(w, err)
			return
		}
		common.Data(w, http.StatusCreated, receipt)
	}
}

// List handles GET /api/admin/contracts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "contract service not configured", nil)
		return
	}
	page := common.ParsePage(r, 20, 100)
	items, err := h.service.List(r.Context(), r.URL.Query().Get("kind"), page)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": page,
	})
}

// Get handles GET /api/admin/contracts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "contract service not configured", nil)
		return
	}
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rec)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "contract not found", nil)
	case errors.Is(err, ErrVerificationRequired):
		common.JSONError(w, http.StatusForbidden, "OTP_REQUIRED", "phone verification is missing or expired", nil)
	default:
		common.WriteError(w, err)
	}
}
