package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/plan-configurator/internal/common"
)

var draining atomic.Bool

// SetReady flips readiness. The API turns it off before draining so load
// balancers stop sending configurator traffic.
func SetReady(v bool) { draining.Store(!v) }

func IsReady() bool { return !draining.Load() }

// Checker probes the backing stores. Both the API and the worker share one
// implementation in internal/app.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Probe is one dependency's entry in the readiness body.
type Probe struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
}

type readiness struct {
	Status string           `json:"status"`
	Checks map[string]Probe `json:"checks,omitempty"`
}

func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready pings Postgres and Redis in parallel. Probe errors are logged, never
// echoed to the caller.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !IsReady() {
		common.JSON(w, http.StatusServiceUnavailable, readiness{Status: "draining"})
		return
	}
	if h.Checker == nil {
		common.JSON(w, http.StatusServiceUnavailable, readiness{Status: "unconfigured"})
		return
	}

	probes := map[string]func(context.Context, time.Duration) error{
		"db":    h.Checker.PingDB,
		"redis": h.Checker.PingRedis,
	}
	timeouts := map[string]time.Duration{
		"db":    orDefault(h.DBTimeout, 500*time.Millisecond),
		"redis": orDefault(h.RedisTimeout, 300*time.Millisecond),
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Probe, len(probes))
	)
	for name, ping := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := ping(r.Context(), timeouts[name])
			p := Probe{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				p.Status = "down"
				zerolog.Ctx(r.Context()).Warn().Err(err).Str("dependency", name).Msg("readiness probe failed")
			}
			mu.Lock()
			checks[name] = p
			mu.Unlock()
		}()
	}
	wg.Wait()

	body := readiness{Status: "ok", Checks: checks}
	status := http.StatusOK
	for _, p := range checks {
		if p.Status != "ok" {
			body.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	common.JSON(w, status, body)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
