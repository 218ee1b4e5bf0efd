package otp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUpstream wraps transport and decoding failures talking to the provider.
var ErrUpstream = errors.New("otp: provider unavailable")

// Verification statuses reported by the provider.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusCanceled = "canceled"
)

// Verification is the provider's view of one verification attempt.
type Verification struct {
	SID     string `json:"sid,omitempty"`
	To      string `json:"to"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// Approved reports whether the code check succeeded.
func (v Verification) Approved() bool { return v.Status == StatusApproved }

// Provider abstracts the SMS/voice verification upstream.
type Provider interface {
	Start(ctx context.Context, to, channel string) (Verification, error)
	Check(ctx context.Context, to, code string) (Verification, error)
}

// UpstreamError is a non-retryable error answer from the provider.
type UpstreamError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("otp: provider responded %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// clientError reports whether the provider rejected the input rather than failing.
func (e *UpstreamError) clientError() bool {
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}

// MockProvider approves the fixed code and is meant for local development only.
type MockProvider struct {
	Code string
}

// Start always reports a pending verification.
func (m MockProvider) Start(_ context.Context, to, channel string) (Verification, error) {
	return Verification{SID: "VEmock", To: to, Channel: channel, Status: StatusPending}, nil
}

// Check approves when the code matches.
func (m MockProvider) Check(_ context.Context, to, code string) (Verification, error) {
	expected := m.Code
	if expected == "" {
		expected = "000000"
	}
	status := StatusPending
	if code == expected {
		status = StatusApproved
	}
	return Verification{SID: "VEmock", To: to, Channel: "sms", Status: status}, nil
}
