package contract_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/configurator"
	"github.com/noah-isme/plan-configurator/internal/contract"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/events"
	"github.com/noah-isme/plan-configurator/internal/lock"
	"github.com/noah-isme/plan-configurator/internal/otp"
	"github.com/noah-isme/plan-configurator/internal/pricing"
)

type memStore struct {
	mu        sync.Mutex
	rows      []dbgen.Contract
	insertErr error
}

func (s *memStore) InsertContract(_ context.Context, arg dbgen.InsertContractParams) (dbgen.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return dbgen.Contract{}, s.insertErr
	}
	row := dbgen.Contract{
		ID:            pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Kind:          arg.Kind,
		SessionID:     arg.SessionID,
		CustomerName:  arg.CustomerName,
		CustomerEmail: arg.CustomerEmail,
		CustomerPhone: arg.CustomerPhone,
		Payload:       arg.Payload,
		Total:         arg.Total,
		Status:        "submitted",
		CreatedAt:     pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	s.rows = append(s.rows, row)
	return row, nil
}

func (s *memStore) GetContract(_ context.Context, id pgtype.UUID) (dbgen.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return dbgen.Contract{}, pgx.ErrNoRows
}

func (s *memStore) ListContracts(_ context.Context, arg dbgen.ListContractsParams) ([]dbgen.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []dbgen.Contract
	for i := len(s.rows) - 1; i >= 0; i-- {
		if arg.Kind.Valid && s.rows[i].Kind != arg.Kind.String {
			continue
		}
		out = append(out, s.rows[i])
	}
	return out, nil
}

// tokenVerifier mimics otp.Service.Consume: tokens are single use and bound to phone and kind.
type tokenVerifier struct {
	tokens map[string]string
}

func (v *tokenVerifier) Consume(_ context.Context, token, phone, kind string) error {
	normalized, err := otp.NormalizePhone(phone)
	if err != nil {
		return otp.ErrInvalidToken
	}
	want, ok := v.tokens[token]
	if !ok || want != normalized+"|"+kind {
		return otp.ErrInvalidToken
	}
	delete(v.tokens, token)
	return nil
}

func (v *tokenVerifier) Restore(_ context.Context, token, phone, kind string) error {
	normalized, err := otp.NormalizePhone(phone)
	if err != nil {
		return otp.ErrInvalidToken
	}
	if _, ok := v.tokens[token]; !ok {
		v.tokens[token] = normalized + "|" + kind
	}
	return nil
}

type captureEvents struct {
	topics []string
	ids    []pgtype.UUID
}

func (c *captureEvents) Emit(_ context.Context, topic string, id pgtype.UUID, _ any) (dbgen.DomainEvent, error) {
	c.topics = append(c.topics, topic)
	c.ids = append(c.ids, id)
	return dbgen.DomainEvent{Topic: topic, AggregateID: id}, nil
}

type harness struct {
	router   http.Handler
	store    *memStore
	verifier *tokenVerifier
	events   *captureEvents
	sessions *configurator.Service
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sessions, err := configurator.NewService(configurator.ServiceConfig{
		Store:  configurator.NewRedisStore(rdb, time.Hour),
		Locker: lock.Locker{R: rdb, RetryBackoff: 5 * time.Millisecond, MaxWait: time.Second},
	})
	require.NoError(t, err)

	store := &memStore{}
	verifier := &tokenVerifier{tokens: map[string]string{
		"tok-business":    "+61412345678|business",
		"tok-residential": "+61412345678|residential",
	}}
	ev := &captureEvents{}
	svc, err := contract.NewService(contract.ServiceConfig{
		Store:    store,
		Sessions: sessions,
		Verifier: verifier,
		Events:   ev,
		Now:      func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	h := contract.NewHandler(contract.HandlerConfig{Service: svc})

	r := chi.NewRouter()
	r.Post("/api/contract", h.Submit(contract.KindResidential))
	r.Post("/api/business-contract", h.Submit(contract.KindBusiness))
	r.Get("/api/admin/contracts", h.List)
	r.Get("/api/admin/contracts/{id}", h.Get)
	return harness{router: r, store: store, verifier: verifier, events: ev, sessions: sessions}
}

func (h harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

const customerJSON = `"customer":{"firstName":"Grace","lastName":"Hopper","email":"Grace@Example.com","phone":"0412 345 678","address":"1 George St, Sydney NSW 2000"}`

// businessSession builds the 584.5 reference configuration through the session API.
func businessSession(t *testing.T, svc *configurator.Service) string {
	t.Helper()
	ctx := context.Background()
	view, err := svc.Create(ctx, configurator.CreateInput{Kind: configurator.KindBusiness})
	require.NoError(t, err)
	id := view.Session.ID

	price := decimal.RequireFromString("65")
	_, err = svc.SetPlan(ctx, id, configurator.PlanInput{Plan: &pricing.PlanSelection{Title: "Plan", DiscountPrice: &price}})
	require.NoError(t, err)
	_, err = svc.SetModem(ctx, id, pricing.ModemBundleSelection{BundleTier: pricing.TierOneExtender, PaymentTerm: pricing.TermOutright})
	require.NoError(t, err)
	_, err = svc.SetPhone(ctx, id, configurator.PhoneInput{PlanID: "pack"})
	require.NoError(t, err)
	_, err = svc.SetPBX(ctx, id, configurator.PBXInput{
		SelectedPlan:      "Hosted PAYG",
		NumUsers:          3,
		HandsetQuantities: map[string]int{"Yealink T31G": 2},
	})
	require.NoError(t, err)
	return id
}

func TestBusinessContractFromSession(t *testing.T) {
	h := newHarness(t)
	sessionID := businessSession(t, h.sessions)

	body := `{` + customerJSON + `,"business":{"companyName":"Hopper Pty Ltd","abn":"51824753556"},"sessionId":"` + sessionID + `","otpToken":"tok-business","acceptTerms":true}`
	rec := h.do(http.MethodPost, "/api/business-contract", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data contract.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, decimal.RequireFromString("584.5").Equal(resp.Data.Total))
	require.Len(t, resp.Data.Items, 5)
	require.Equal(t, "submitted", resp.Data.Status)

	require.Len(t, h.store.rows, 1)
	row := h.store.rows[0]
	require.Equal(t, "Grace Hopper", row.CustomerName)
	require.Equal(t, "grace@example.com", row.CustomerEmail)
	require.Equal(t, "+61412345678", row.CustomerPhone)
	require.Equal(t, sessionID, common.TextValue(row.SessionID))
	require.Equal(t, "584.50", common.Decimal(row.Total).StringFixed(2))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(row.Payload, &payload))
	require.Equal(t, "Internet plan", payload["data1"])
	require.Equal(t, "Plan", payload["data1Value"])
	require.Equal(t, "Modem", payload["data2"])
	require.Equal(t, "1 Modem + 1 Extender — $235 / Upfront", payload["data2Value"])
	require.Equal(t, "235.00", payload["data2Price"])
	require.Equal(t, "Phone", payload["data3"])
	require.Equal(t, "PBX plan", payload["data4"])
	require.Equal(t, "5.50", payload["data4Price"])
	require.Equal(t, "16.50", payload["data4Subtotal"])
	require.Equal(t, "Handset", payload["data5"])
	require.Equal(t, "258.00", payload["data5Subtotal"])
	require.Equal(t, "", payload["data6"])
	require.Equal(t, map[string]any{"total": "584.50"}, payload["pricing"])
	require.Equal(t, "Hopper Pty Ltd", payload["companyName"])
	require.Equal(t, "+61412345678", payload["phone"])

	require.Equal(t, []string{events.TopicContractSubmitted}, h.events.topics)
	require.Equal(t, row.ID, h.events.ids[0])

	// The verification token is spent.
	rec = h.do(http.MethodPost, "/api/business-contract", body)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "OTP_REQUIRED")
	require.Len(t, h.store.rows, 1)
}

func TestResidentialContractInlineSelection(t *testing.T) {
	h := newHarness(t)
	body := `{` + customerJSON + `,"selection":{"plan":{"title":"Fibre 100","actualPrice":"99.99","discountPrice":"79.99"},"phone":{"planId":"payg"}},"otpToken":"tok-residential","acceptTerms":true}`
	rec := h.do(http.MethodPost, "/api/contract", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data contract.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, decimal.RequireFromString("79.99").Equal(resp.Data.Total))
	require.Len(t, resp.Data.Items, 2)
	require.False(t, h.store.rows[0].SessionID.Valid)
}

func TestSubmitRejections(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{
			name:   "missing plan",
			path:   "/api/contract",
			body:   `{` + customerJSON + `,"selection":{"phone":{"planId":"pack"}},"otpToken":"tok-residential","acceptTerms":true}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "pbx on residential",
			path:   "/api/contract",
			body:   `{` + customerJSON + `,"selection":{"plan":{"title":"P","actualPrice":"50"},"pbx":{"selectedPlan":"Hosted PAYG","numUsers":1}},"otpToken":"tok-residential","acceptTerms":true}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "business details missing",
			path:   "/api/business-contract",
			body:   `{` + customerJSON + `,"selection":{"plan":{"title":"P","actualPrice":"50"}},"otpToken":"tok-business","acceptTerms":true}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "bad abn",
			path:   "/api/business-contract",
			body:   `{` + customerJSON + `,"business":{"companyName":"X","abn":"123"},"selection":{"plan":{"title":"P","actualPrice":"50"}},"otpToken":"tok-business","acceptTerms":true}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "terms not accepted",
			path:   "/api/contract",
			body:   `{` + customerJSON + `,"selection":{"plan":{"title":"P","actualPrice":"50"}},"otpToken":"tok-residential"}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "no selection",
			path:   "/api/contract",
			body:   `{` + customerJSON + `,"otpToken":"tok-residential","acceptTerms":true}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown session",
			path:   "/api/contract",
			body:   `{` + customerJSON + `,"sessionId":"` + uuid.NewString() + `","otpToken":"tok-residential","acceptTerms":true}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "invalid email",
			path:   "/api/contract",
			body:   `{"customer":{"firstName":"G","lastName":"H","email":"nope","phone":"0412345678","address":"x"},"selection":{"plan":{"title":"P","actualPrice":"50"}},"otpToken":"tok-residential","acceptTerms":true}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "token for other kind",
			path:   "/api/contract",
			body:   `{` + customerJSON + `,"selection":{"plan":{"title":"P","actualPrice":"50"}},"otpToken":"tok-business","acceptTerms":true}`,
			status: http.StatusForbidden,
			code:   "OTP_REQUIRED",
		},
		{
			name:   "unknown field",
			path:   "/api/contract",
			body:   `{"nope":true}`,
			status: http.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.do(http.MethodPost, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Contains(t, rec.Body.String(), tc.code)
			require.Empty(t, h.store.rows)
			require.Empty(t, h.events.topics)
		})
	}
}

func TestRejectedSubmissionKeepsToken(t *testing.T) {
	h := newHarness(t)
	bad := `{` + customerJSON + `,"selection":{"phone":{"planId":"pack"}},"otpToken":"tok-residential","acceptTerms":true}`
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/contract", bad).Code)
	require.Contains(t, h.verifier.tokens, "tok-residential")
}

func TestSessionKindMustMatch(t *testing.T) {
	h := newHarness(t)
	sessionID := businessSession(t, h.sessions)
	body := `{` + customerJSON + `,"sessionId":"` + sessionID + `","otpToken":"tok-residential","acceptTerms":true}`
	rec := h.do(http.MethodPost, "/api/contract", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "sessionId")
}

func TestAdminListAndGet(t *testing.T) {
	h := newHarness(t)
	body := `{` + customerJSON + `,"selection":{"plan":{"title":"P","actualPrice":"50"}},"otpToken":"tok-residential","acceptTerms":true}`
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/contract", body).Code)
	id := common.UUIDString(h.store.rows[0].ID)

	rec := h.do(http.MethodGet, "/api/admin/contracts?kind=residential", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []contract.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, id, list.Data[0].ID)

	rec = h.do(http.MethodGet, "/api/admin/contracts?kind=business", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Empty(t, list.Data)

	require.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/admin/contracts?kind=enterprise", "").Code)

	rec = h.do(http.MethodGet, "/api/admin/contracts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one struct {
		Data contract.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	require.Equal(t, "submitted", one.Data.Status)
	require.Equal(t, "50.00", one.Data.Total.StringFixed(2))

	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/admin/contracts/"+uuid.NewString(), "").Code)
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/admin/contracts/nope", "").Code)
}

func TestNilServiceHandler(t *testing.T) {
	h := contract.NewHandler(contract.HandlerConfig{})
	rec := httptest.NewRecorder()
	h.Submit(contract.KindResidential)(rec, httptest.NewRequest(http.MethodPost, "/api/contract", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBusinessContractInlineHandsetsAreCapped(t *testing.T) {
	h := newHarness(t)
	body := `{` + customerJSON + `,"business":{"companyName":"Hopper Pty Ltd","abn":"51824753556"},` +
		`"selection":{"plan":{"title":"Plan","discountPrice":"65"},"pbx":{"selectedPlan":"Hosted PAYG","numUsers":1,"handsetQuantities":{"Yealink T31G":50,"Yealink W73P":1}}},` +
		`"otpToken":"tok-business","acceptTerms":true}`
	rec := h.do(http.MethodPost, "/api/business-contract", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data contract.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	labels := make([]string, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		labels = append(labels, item.Label)
	}
	require.Equal(t, []string{"Plan", "Hosted PAYG x1", "Yealink T31G x1", "Yealink W73P x1"}, labels)
	// 65 + 5.50 + 129 + 249
	require.True(t, decimal.RequireFromString("448.5").Equal(resp.Data.Total), resp.Data.Total.String())
	require.Len(t, resp.Data.Warnings, 1)
	require.Contains(t, resp.Data.Warnings[0], "Yealink T31G limited to 1")
	require.Equal(t, "448.50", common.Decimal(h.store.rows[0].Total).StringFixed(2))
}

func TestFailedInsertKeepsToken(t *testing.T) {
	h := newHarness(t)
	h.store.insertErr = errors.New("connection reset")
	body := `{` + customerJSON + `,"selection":{"plan":{"title":"P","actualPrice":"50"}},"otpToken":"tok-residential","acceptTerms":true}`

	rec := h.do(http.MethodPost, "/api/contract", body)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "+61412345678|residential", h.verifier.tokens["tok-residential"])
	require.Empty(t, h.events.topics)

	h.store.insertErr = nil
	rec = h.do(http.MethodPost, "/api/contract", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotContains(t, h.verifier.tokens, "tok-residential")
}
