package configurator

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/lock"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/pricing"
)

// Handler exposes configurator session and quote endpoints.
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

// Routes mounts the session endpoints; the caller decides the prefix.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Get("/quote", h.SessionQuote)
		r.Put("/plan", h.SetPlan)
		r.Delete("/plan", h.ClearPlan)
		r.Put("/modem", h.SetModem)
		r.Delete("/modem", h.ClearModem)
		r.Put("/phone", h.SetPhone)
		r.Delete("/phone", h.ClearPhone)
		r.Put("/pbx", h.SetPBX)
		r.Delete("/pbx", h.ClearPBX)
		r.Put("/pbx/handsets/{model}", h.SetHandset)
	})
}

// Create handles POST /api/sessions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "configurator service not configured", nil)
		return
	}
	var in CreateInput
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &in); err != nil {
			h.writeError(w, err)
			return
		}
	}
	view, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, view)
}

// Get handles GET /api/sessions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id string) (View, error) { return h.service.View(r.Context(), id) })
}

// Delete handles DELETE /api/sessions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "configurator service not configured", nil)
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionQuote handles GET /api/sessions/{id}/quote.
func (h *Handler) SessionQuote(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "configurator service not configured", nil)
		return
	}
	q, err := h.service.Quote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// SetPlan handles PUT /api/sessions/{id}/plan.
func (h *Handler) SetPlan(w http.ResponseWriter, r *http.Request) {
	var in PlanInput
	if !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r, func(id string) (View, error) { return h.service.SetPlan(r.Context(), id, in) })
}

// ClearPlan handles DELETE /api/sessions/{id}/plan.
func (h *Handler) ClearPlan(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id string) (View, error) { return h.service.ClearPlan(r.Context(), id) })
}

// SetModem handles PUT /api/sessions/{id}/modem.
func (h *Handler) SetModem(w http.ResponseWriter, r *http.Request) {
	var in pricing.ModemBundleSelection
	if !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r, func(id string) (View, error) { return h.service.SetModem(r.Context(), id, in) })
}

// ClearModem handles DELETE /api/sessions/{id}/modem.
func (h *Handler) ClearModem(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id string) (View, error) { return h.service.ClearModem(r.Context(), id) })
}

// SetPhone handles PUT /api/sessions/{id}/phone.
func (h *Handler) SetPhone(w http.ResponseWriter, r *http.Request) {
	var in PhoneInput
	if !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r, func(id string) (View, error) { return h.service.SetPhone(r.Context(), id, in) })
}

// ClearPhone handles DELETE /api/sessions/{id}/phone.
func (h *Handler) ClearPhone(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id string) (View, error) { return h.service.ClearPhone(r.Context(), id) })
}

// SetPBX handles PUT /api/sessions/{id}/pbx.
func (h *Handler) SetPBX(w http.ResponseWriter, r *http.Request) {
	var in PBXInput
	if !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r, func(id string) (View, error) { return h.service.SetPBX(r.Context(), id, in) })
}

// ClearPBX handles DELETE /api/sessions/{id}/pbx.
func (h *Handler) ClearPBX(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id string) (View, error) { return h.service.ClearPBX(r.Context(), id) })
}

// SetHandset handles PUT /api/sessions/{id}/pbx/handsets/{model}. A clamped write
// still answers 200 with the clamp listed under capWarnings.
func (h *Handler) SetHandset(w http.ResponseWriter, r *http.Request) {
	var in HandsetInput
	if !h.decode(w, r, &in) {
		return
	}
	model, err := url.PathUnescape(chi.URLParam(r, "model"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid handset model", nil)
		return
	}
	h.respond(w, r, func(id string) (View, error) { return h.service.SetHandset(r.Context(), id, model, in) })
}

// StatelessQuote handles POST /api/quote: compose a selection without a session.
func (h *Handler) StatelessQuote(w http.ResponseWriter, r *http.Request) {
	var sel pricing.Selection
	if err := common.DecodeJSON(r, &sel); err != nil {
		h.writeError(w, err)
		return
	}
	q := pricing.Compose(pricing.Normalize(sel))
	obs.ObserveQuote("stateless", len(q.Warnings))
	common.Data(w, http.StatusOK, q)
}

// Options handles GET /api/configurator/options: the fixed addon catalog.
func (h *Handler) Options(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, AddonOptions())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "configurator service not configured", nil)
		return false
	}
	if err := common.DecodeJSON(r, dst); err != nil {
		h.writeError(w, err)
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fn func(id string) (View, error)) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "configurator service not configured", nil)
		return
	}
	view, err := fn(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, ErrPBXNotAllowed):
		common.JSONError(w, http.StatusConflict, "PBX_NOT_ALLOWED", err.Error(), nil)
	case errors.Is(err, lock.ErrBusy):
		common.JSONError(w, http.StatusConflict, "SESSION_BUSY", "session is being updated, retry shortly", nil)
	default:
		common.WriteError(w, err)
	}
}
