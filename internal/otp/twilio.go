package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/resilience"
)

// TwilioVerify calls the Twilio Verify v2 API.
type TwilioVerify struct {
	AccountSID string
	AuthToken  string
	ServiceSID string
	BaseURL    string
	HTTP       resilience.HTTPClient
}

type twilioVerification struct {
	SID     string `json:"sid"`
	To      string `json:"to"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Start creates a verification and sends the code over the channel.
func (t TwilioVerify) Start(ctx context.Context, to, channel string) (Verification, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("Channel", channel)
	return t.post(ctx, "send", "Verifications", form)
}

// Check submits the code the customer entered. An expired or unknown verification
// comes back as 404 from Twilio and is reported as not approved.
func (t TwilioVerify) Check(ctx context.Context, to, code string) (Verification, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("Code", code)
	v, err := t.post(ctx, "check", "VerificationCheck", form)
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
		return Verification{To: to, Status: StatusCanceled}, nil
	}
	return v, err
}

func (t TwilioVerify) post(ctx context.Context, op, resource string, form url.Values) (Verification, error) {
	base := strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if base == "" {
		base = "https://verify.twilio.com/v2"
	}
	endpoint := fmt.Sprintf("%s/Services/%s/%s", base, url.PathEscape(t.ServiceSID), resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Verification{}, err
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.HTTP.Do(ctx, req)
	if err != nil {
		obs.ObserveUpstream("twilio_"+op, "error", obs.DurationMillis(time.Since(start)))
		return Verification{}, fmt.Errorf("%w: twilio %s: %w", ErrUpstream, op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		obs.ObserveUpstream("twilio_"+op, "error", obs.DurationMillis(time.Since(start)))
		return Verification{}, fmt.Errorf("%w: twilio %s: read body: %w", ErrUpstream, op, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		obs.ObserveUpstream("twilio_"+op, "rejected", obs.DurationMillis(time.Since(start)))
		var te twilioError
		_ = json.Unmarshal(body, &te)
		return Verification{}, &UpstreamError{StatusCode: resp.StatusCode, Code: te.Code, Message: te.Message}
	}
	obs.ObserveUpstream("twilio_"+op, "ok", obs.DurationMillis(time.Since(start)))

	var tv twilioVerification
	if err := json.Unmarshal(body, &tv); err != nil {
		return Verification{}, fmt.Errorf("%w: twilio %s: decode: %w", ErrUpstream, op, err)
	}
	return Verification{SID: tv.SID, To: tv.To, Channel: tv.Channel, Status: tv.Status}, nil
}
