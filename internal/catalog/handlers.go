package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/plan-configurator/internal/common"
)

// Handler exposes the public catalog and the admin product endpoints.
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

// result is what a catalog endpoint produces. A nil body writes no content;
// bare bodies are written as-is, everything else inside the data envelope.
type result struct {
	status int
	body   any
	bare   bool
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, fn func(*http.Request) (result, error)) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	res, err := fn(r)
	switch {
	case err != nil:
		writeError(w, err)
	case res.body == nil:
		w.WriteHeader(res.status)
	case res.bare:
		common.JSON(w, res.status, res.body)
	default:
		common.Data(w, res.status, res.body)
	}
}

// Products handles GET /api/products with an optional ?category= filter. The
// list keeps its own shape ({products, updatedAt}) for storefront clients.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(r *http.Request) (result, error) {
		list, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("category"))
		return result{status: http.StatusOK, body: list, bare: true}, err
	})
}

// Product handles GET /api/products/{id}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(r *http.Request) (result, error) {
		p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
		return result{status: http.StatusOK, body: p}, err
	})
}

// AdminProducts handles GET /api/admin/products, inactive plans included.
func (h *Handler) AdminProducts(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(r *http.Request) (result, error) {
		items, err := h.service.AdminListProducts(r.Context())
		return result{status: http.StatusOK, body: items}, err
	})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(r *http.Request) (result, error) {
		var in ProductInput
		if err := common.DecodeJSON(r, &in); err != nil {
			return result{}, err
		}
		p, err := h.service.CreateProduct(r.Context(), in)
		return result{status: http.StatusCreated, body: p}, err
	})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(r *http.Request) (result, error) {
		var in ProductInput
		if err := common.DecodeJSON(r, &in); err != nil {
			return result{}, err
		}
		p, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
		return result{status: http.StatusOK, body: p}, err
	})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(r *http.Request) (result, error) {
		err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
		return result{status: http.StatusNoContent}, err
	})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", nil)
		return
	}
	common.WriteError(w, err)
}
