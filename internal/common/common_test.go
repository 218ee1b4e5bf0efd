package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestAdminContext(t *testing.T) {
	ctx := context.Background()
	_, ok := AdminID(ctx)
	require.False(t, ok)

	ctx = WithAdminID(ctx, "a-1")
	ctx = WithPermissions(ctx, []string{"products:write"})
	id, ok := AdminID(ctx)
	require.True(t, ok)
	require.Equal(t, "a-1", id)
	require.True(t, HasPermission(ctx, "products:write"))
	require.False(t, HasPermission(ctx, "admins:write"))
	require.True(t, HasPermission(WithPermissions(ctx, []string{"*"}), "admins:write"))
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewAppError("UPSTREAM_ERROR", "upstream failed", http.StatusBadGateway, base)
	appErr, ok := AsAppError(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	require.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)
	require.ErrorIs(t, err, base)
	require.Equal(t, "boom", err.Error())
}

func TestJSONErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, http.StatusBadRequest, "VALIDATION_ERROR", "plan is required", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.2:5555"
	require.Equal(t, "198.51.100.2", ClientIP(req))
}

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Idem{R: client, TTL: time.Minute}, mr
}

func TestIdemReplaysFirstResponse(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		Data(w, http.StatusCreated, map[string]any{"contractId": fmt.Sprintf("c-%d", calls)})
	}))

	send := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("/api/contract")
	require.Equal(t, http.StatusCreated, first.Code)
	second := send("/api/contract")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, 1, calls)

	require.Equal(t, http.StatusCreated, send("/api/business-contract").Code)
	require.Equal(t, 2, calls)
}

func TestIdemInFlightConflict(t *testing.T) {
	idem, mr := newIdem(t)
	req := httptest.NewRequest(http.MethodPost, "/api/contract", nil)
	require.NoError(t, mr.Set(idemKey(req, "k1"), idemPending))

	req.Header.Set("Idempotency-Key", "k1")
	rec := httptest.NewRecorder()
	idem.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), CodeIdempotencyInFlight)
}

func TestIdemReleasesKeyOnServerError(t *testing.T) {
	idem, mr := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			JSONError(w, http.StatusBadGateway, CodeUpstream, "webhook down", nil)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	for _, want := range []int{http.StatusBadGateway, http.StatusCreated} {
		req := httptest.NewRequest(http.MethodPost, "/api/contract", nil)
		req.Header.Set("Idempotency-Key", "retry-me")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code)
	}
	require.Equal(t, 2, calls)
	require.Len(t, mr.Keys(), 1)
}

func TestClientIPSkipsGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "unknown, 2001:db8::1")
	require.Equal(t, "2001:db8::1", ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	req.Header.Set("X-Real-IP", "192.0.2.9")
	require.Equal(t, "192.0.2.9", ClientIP(req))
}

func TestParsePage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=25", nil)
	p := ParsePage(req, 20, 100)
	require.Equal(t, Page{Number: 3, PerPage: 25}, p)
	require.Equal(t, int32(50), p.Offset())
	require.Equal(t, int32(25), p.Limit())

	req = httptest.NewRequest(http.MethodGet, "/?page=-1&limit=5000", nil)
	p = ParsePage(req, 20, 100)
	require.Equal(t, Page{Number: 1, PerPage: 100}, p)
	require.Equal(t, int32(0), p.Offset())
}

func TestFieldErrorRendersFields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("submit: %w", FieldError("plan", "plan is required")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":{"code":"VALIDATION_ERROR","message":"plan is required","details":{"fields":{"plan":"plan is required"}}}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("db down"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestJSONUnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, http.StatusOK, map[string]any{"bad": make(chan int)})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), CodeInternal)
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)
	require.Len(t, a, 43)
	require.NotEqual(t, a, b)

	_, err = RandomToken(0)
	require.Error(t, err)
	require.Len(t, Sha256Hex("pk_test"), 64)
}
