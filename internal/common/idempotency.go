package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	CodeIdempotencyInFlight = "IDEMPOTENCY_IN_FLIGHT"
	idemPending             = "pending"
)

// Idem makes write endpoints safe to retry with an Idempotency-Key header. The
// first response under a key is stored for TTL and replayed verbatim to
// repeats, so a double-submitted contract is filed once and both callers see
// the same reference. 5xx responses are not stored and the key is released.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
}

// idemKey scopes the client key to method and path so one key cannot replay
// across endpoints.
func idemKey(r *http.Request, key string) string {
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + "\n" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := idemKey(r, header)

		claimed, err := i.R.SetNX(ctx, key, idemPending, i.TTL).Result()
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("idempotency claim failed")
			JSONError(w, http.StatusServiceUnavailable, CodeInternal, "idempotency store unavailable", nil)
			return
		}
		if !claimed {
			i.replay(ctx, w, key)
			return
		}

		capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		completed := false
		defer func() {
			// Release the claim when the handler panicked or failed server-side.
			if !completed || capture.status >= http.StatusInternalServerError {
				_ = i.R.Del(context.WithoutCancel(ctx), key).Err()
			}
		}()
		next.ServeHTTP(capture, r)
		completed = true

		if capture.status >= http.StatusInternalServerError {
			return
		}
		stored, err := json.Marshal(storedResponse{
			Status:      capture.status,
			ContentType: capture.Header().Get("Content-Type"),
			Body:        capture.body.Bytes(),
		})
		if err == nil {
			err = i.R.Set(context.WithoutCancel(ctx), key, stored, i.TTL).Err()
		}
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("idempotency store failed")
		}
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key string) {
	raw, err := i.R.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		JSONError(w, http.StatusServiceUnavailable, CodeInternal, "idempotency store unavailable", nil)
		return
	}
	var prior storedResponse
	if err != nil || string(raw) == idemPending || json.Unmarshal(raw, &prior) != nil {
		JSONError(w, http.StatusConflict, CodeIdempotencyInFlight, "a request with this idempotency key is still in progress", nil)
		return
	}
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(prior.Status)
	_, _ = w.Write(prior.Body)
}

type captureWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if !c.wrote {
		c.status = code
		c.wrote = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.wrote = true
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
