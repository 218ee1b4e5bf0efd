package otp

import (
	"errors"
	"net/http"

	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/resilience"
)

// Handler exposes the send/verify OTP endpoints for both customer kinds.
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

// Send returns the handler for POST /api/{kind}-send-otp.
func (h *Handler) Send(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.service == nil {
			common.JSONError(w, http.StatusServiceUnavailable, "OTP_UNAVAILABLE", "verification service not configured", nil)
			return
		}
		var in SendInput
		if err := common.DecodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		res, err := h.service.Send(r.Context(), kind, in)
		if err != nil {
			writeError(w, err)
			return
		}
		common.Data(w, http.StatusOK, res)
	}
}

// Verify returns the handler for POST /api/{kind}-verify-otp.
func (h *Handler) Verify(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.service == nil {
			common.JSONError(w, http.StatusServiceUnavailable, "OTP_UNAVAILABLE", "verification service not configured", nil)
			return
		}
		var in VerifyInput
		if err := common.DecodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		res, err := h.service.Verify(r.Context(), kind, in)
		if err != nil {
			writeError(w, err)
			return
		}
		common.Data(w, http.StatusOK, res)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrInvalidCode):
		common.JSONError(w, http.StatusBadRequest, "OTP_INVALID", "verification code is incorrect or expired", nil)
	case errors.Is(err, resilience.ErrOpenCircuit):
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "verification provider temporarily unavailable", nil)
	case errors.As(err, &upstream) && upstream.clientError():
		common.JSONError(w, http.StatusBadRequest, "OTP_REJECTED", "verification provider rejected the request", map[string]any{"provider_code": upstream.Code})
	case errors.As(err, &upstream), errors.Is(err, ErrUpstream):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "verification provider error", nil)
	default:
		common.WriteError(w, err)
	}
}
