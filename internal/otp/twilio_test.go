package otp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/plan-configurator/internal/resilience"
)

func newTwilioServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":20003,"message":"Authenticate","status":401}`))
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/Services/VA1/Verifications":
			if r.PostForm.Get("To") == "+61400000009" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":60200,"message":"Invalid parameter","status":400}`))
				return
			}
			_, _ = w.Write([]byte(`{"sid":"VE1","to":"` + r.PostForm.Get("To") + `","channel":"` + r.PostForm.Get("Channel") + `","status":"pending"}`))
		case "/v2/Services/VA1/VerificationCheck":
			switch r.PostForm.Get("Code") {
			case "123456":
				_, _ = w.Write([]byte(`{"sid":"VE1","to":"` + r.PostForm.Get("To") + `","channel":"sms","status":"approved"}`))
			case "999999":
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":20404,"message":"not found","status":404}`))
			default:
				_, _ = w.Write([]byte(`{"sid":"VE1","to":"` + r.PostForm.Get("To") + `","channel":"sms","status":"pending"}`))
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTwilio(srv *httptest.Server, token string) TwilioVerify {
	return TwilioVerify{
		AccountSID: "AC123",
		AuthToken:  token,
		ServiceSID: "VA1",
		BaseURL:    srv.URL + "/v2/",
		HTTP: resilience.HTTPClient{
			Client:      srv.Client(),
			MaxAttempts: 2,
			BaseBackoff: time.Millisecond,
		},
	}
}

func TestTwilioStartAndCheck(t *testing.T) {
	tw := newTwilio(newTwilioServer(t), "secret")
	ctx := context.Background()

	v, err := tw.Start(ctx, "+61412345678", "sms")
	require.NoError(t, err)
	require.Equal(t, StatusPending, v.Status)
	require.Equal(t, "+61412345678", v.To)
	require.Equal(t, "sms", v.Channel)

	v, err = tw.Check(ctx, "+61412345678", "123456")
	require.NoError(t, err)
	require.True(t, v.Approved())

	v, err = tw.Check(ctx, "+61412345678", "111111")
	require.NoError(t, err)
	require.False(t, v.Approved())
}

func TestTwilioExpiredVerificationIsNotApproved(t *testing.T) {
	tw := newTwilio(newTwilioServer(t), "secret")
	v, err := tw.Check(context.Background(), "+61412345678", "999999")
	require.NoError(t, err)
	require.False(t, v.Approved())
}

func TestTwilioClientErrors(t *testing.T) {
	srv := newTwilioServer(t)

	_, err := newTwilio(srv, "wrong").Start(context.Background(), "+61412345678", "sms")
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	require.Equal(t, 20003, upstream.Code)

	_, err = newTwilio(srv, "secret").Start(context.Background(), "+61400000009", "sms")
	require.True(t, errors.As(err, &upstream))
	require.True(t, upstream.clientError())
}

func TestTwilioServerErrorIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := newTwilio(srv, "secret").Start(context.Background(), "+61412345678", "sms")
	require.ErrorIs(t, err, ErrUpstream)
	var status *resilience.StatusError
	require.True(t, errors.As(err, &status))
	require.Equal(t, http.StatusServiceUnavailable, status.StatusCode)
}
