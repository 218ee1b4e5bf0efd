package address

import (
	"errors"
	"net/http"

	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/resilience"
)

// Handler exposes address lookup endpoints.
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

// Autocomplete handles GET /api/address/autocomplete?text=.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "address service not configured", nil)
		return
	}
	items, err := h.service.Autocomplete(r.Context(), r.URL.Query().Get("text"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// NBN handles GET /api/address/nbn?address=.
func (h *Handler) NBN(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "address service not configured", nil)
		return
	}
	tech, err := h.service.Technology(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, tech)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "address lookup temporarily unavailable", nil)
	case errors.Is(err, ErrNotConfigured):
		common.JSONError(w, http.StatusServiceUnavailable, "LOOKUP_DISABLED", "address lookup is not configured", nil)
	case errors.Is(err, ErrUpstream):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "address lookup failed", nil)
	default:
		common.WriteError(w, err)
	}
}
