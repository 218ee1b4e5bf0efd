package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/plan-configurator/internal/health"
)

type stubChecker struct {
	dbErr    error
	redisErr error
	timeouts chan time.Duration
}

func (s stubChecker) PingDB(_ context.Context, timeout time.Duration) error {
	if s.timeouts != nil {
		s.timeouts <- timeout
	}
	return s.dbErr
}

func (s stubChecker) PingRedis(_ context.Context, timeout time.Duration) error {
	if s.timeouts != nil {
		s.timeouts <- timeout
	}
	return s.redisErr
}

type readyBody struct {
	Status string                  `json:"status"`
	Checks map[string]health.Probe `json:"checks"`
}

func ready(t *testing.T, h health.Handler) (int, readyBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body readyBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr.Code, body
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyAllUp(t *testing.T) {
	code, body := ready(t, health.Handler{Checker: stubChecker{}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "ok", body.Checks["db"].Status)
	require.Equal(t, "ok", body.Checks["redis"].Status)
}

func TestReadyHidesProbeErrors(t *testing.T) {
	code, body := ready(t, health.Handler{Checker: stubChecker{redisErr: errors.New("dial tcp 10.0.0.3:6379: refused")}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "ok", body.Checks["db"].Status)
	require.Equal(t, "down", body.Checks["redis"].Status)
}

func TestReadyDefaultTimeouts(t *testing.T) {
	seen := make(chan time.Duration, 2)
	ready(t, health.Handler{Checker: stubChecker{timeouts: seen}})
	close(seen)

	var got []time.Duration
	for d := range seen {
		got = append(got, d)
	}
	require.ElementsMatch(t, []time.Duration{500 * time.Millisecond, 300 * time.Millisecond}, got)
}

func TestReadyWithoutChecker(t *testing.T) {
	code, body := ready(t, health.Handler{})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "unconfigured", body.Status)
}

func TestReadyWhileDraining(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })

	health.SetReady(false)
	require.False(t, health.IsReady())
	code, body := ready(t, health.Handler{Checker: stubChecker{}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", body.Status)

	health.SetReady(true)
	code, _ = ready(t, health.Handler{Checker: stubChecker{}})
	require.Equal(t, http.StatusOK, code)
}
