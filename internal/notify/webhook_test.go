package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/events"
	"github.com/noah-isme/plan-configurator/internal/lock"
	"github.com/noah-isme/plan-configurator/internal/notify"
	"github.com/noah-isme/plan-configurator/internal/queue"
	"github.com/noah-isme/plan-configurator/internal/resilience"
)

const contractID = "0f1e2d3c-4b5a-4978-8695-a4b3c2d1e0f9"

type fakeStore struct {
	mu         sync.Mutex
	contract   dbgen.Contract
	deliveries []dbgen.RecordContractDeliveryParams
}

func (s *fakeStore) GetContract(_ context.Context, id pgtype.UUID) (dbgen.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.contract.ID {
		return dbgen.Contract{}, pgx.ErrNoRows
	}
	return s.contract, nil
}

func (s *fakeStore) RecordContractDelivery(_ context.Context, arg dbgen.RecordContractDeliveryParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, arg)
	s.contract.Status = arg.Status
	return nil
}

type fakeEmitter struct {
	topics []string
}

func (e *fakeEmitter) Emit(_ context.Context, topic string, _ pgtype.UUID, _ any) (dbgen.DomainEvent, error) {
	e.topics = append(e.topics, topic)
	return dbgen.DomainEvent{Topic: topic}, nil
}

func newStore() *fakeStore {
	total := decimal.RequireFromString("584.5")
	return &fakeStore{contract: dbgen.Contract{
		ID:        pgtype.UUID{Bytes: uuid.MustParse(contractID), Valid: true},
		Kind:      "business",
		Payload:   []byte(`{"data1":"Internet plan","pricing":{"total":"584.50"}}`),
		Total:     common.Numeric(&total),
		Status:    "submitted",
		CreatedAt: pgtype.Timestamptz{Time: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), Valid: true},
	}}
}

type recorded struct {
	header http.Header
	body   []byte
}

func newConsumer(t *testing.T, status int) (*httptest.Server, <-chan recorded) {
	t.Helper()
	received := make(chan recorded, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- recorded{header: r.Header.Clone(), body: body}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func newDeliverer(srv *httptest.Server, store *fakeStore, emitter *fakeEmitter) *notify.Deliverer {
	return &notify.Deliverer{
		Store:  store,
		HTTP:   resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1, BaseBackoff: time.Millisecond},
		URL:    srv.URL + "/contracts",
		Secret: "shh",
		Events: emitter,
		Now:    func() time.Time { return time.Unix(1767225600, 0) },
	}
}

func TestDeliverSignsEnvelope(t *testing.T) {
	srv, received := newConsumer(t, http.StatusAccepted)
	store := newStore()
	emitter := &fakeEmitter{}
	d := newDeliverer(srv, store, emitter)

	require.NoError(t, d.Deliver(context.Background(), contractID))

	rec := <-received
	require.Equal(t, "application/json", rec.header.Get("Content-Type"))
	require.Equal(t, contractID, rec.header.Get("X-Contract-ID"))
	require.Equal(t, contractID, rec.header.Get("X-Idempotency-Key"))
	ts, err := strconv.ParseInt(rec.header.Get("X-Timestamp"), 10, 64)
	require.NoError(t, err)
	require.Equal(t, int64(1767225600), ts)
	require.Equal(t, notify.ComputeSignature("shh", ts, contractID, rec.body), rec.header.Get("X-Signature"))

	var env struct {
		ContractID string          `json:"contractId"`
		Kind       string          `json:"kind"`
		Total      string          `json:"total"`
		Contract   json.RawMessage `json:"contract"`
	}
	require.NoError(t, json.Unmarshal(rec.body, &env))
	require.Equal(t, contractID, env.ContractID)
	require.Equal(t, "business", env.Kind)
	require.Equal(t, "584.50", env.Total)
	require.JSONEq(t, `{"data1":"Internet plan","pricing":{"total":"584.50"}}`, string(env.Contract))

	require.Len(t, store.deliveries, 1)
	require.Equal(t, notify.StatusDelivered, store.deliveries[0].Status)
	require.Equal(t, []string{events.TopicContractDelivered}, emitter.topics)

	// A redelivered task does not post again.
	require.NoError(t, d.Deliver(context.Background(), contractID))
	require.Len(t, received, 0)
	require.Len(t, store.deliveries, 1)
}

func TestDeliverRecordsFailure(t *testing.T) {
	srv, _ := newConsumer(t, http.StatusBadRequest)
	store := newStore()
	emitter := &fakeEmitter{}

	err := newDeliverer(srv, store, emitter).Deliver(context.Background(), contractID)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, store.deliveries, 1)
	require.Equal(t, notify.StatusFailed, store.deliveries[0].Status)
	require.Contains(t, store.deliveries[0].LastError.String, "400")
	require.Empty(t, emitter.topics)
}

func TestDeliverPermanentErrorsSkipRetry(t *testing.T) {
	srv, _ := newConsumer(t, http.StatusOK)
	d := newDeliverer(srv, newStore(), &fakeEmitter{})

	require.ErrorIs(t, d.Deliver(context.Background(), uuid.NewString()), asynq.SkipRetry)
	require.ErrorIs(t, d.Deliver(context.Background(), "not-a-uuid"), asynq.SkipRetry)

	d.URL = "http://example.com/hook"
	require.ErrorIs(t, d.Deliver(context.Background(), contractID), asynq.SkipRetry)
	d.URL = "ftp://localhost/hook"
	require.ErrorIs(t, d.Deliver(context.Background(), contractID), asynq.SkipRetry)
}

func TestProcessTaskUsesDeliveryLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, received := newConsumer(t, http.StatusOK)
	store := newStore()
	d := newDeliverer(srv, store, &fakeEmitter{})
	d.Locker = lock.Locker{R: rdb, RetryBackoff: time.Millisecond, MaxWait: 50 * time.Millisecond}

	task, err := queue.NewContractTask(queue.TypeContractDeliver, contractID)
	require.NoError(t, err)

	// Held by another worker.
	mr.Set(lock.DeliveryKey(contractID), "other")
	err = d.ProcessTask(context.Background(), task)
	require.ErrorIs(t, err, lock.ErrBusy)
	require.Len(t, received, 0)

	mr.Del(lock.DeliveryKey(contractID))
	require.NoError(t, d.ProcessTask(context.Background(), task))
	require.Len(t, received, 1)
	require.False(t, mr.Exists(lock.DeliveryKey(contractID)))
}

func TestComputeSignatureIsStable(t *testing.T) {
	a := notify.ComputeSignature("k", 1, "id", []byte(`{}`))
	require.Equal(t, a, notify.ComputeSignature("k", 1, "id", []byte(`{}`)))
	require.NotEqual(t, a, notify.ComputeSignature("k", 2, "id", []byte(`{}`)))
	require.Len(t, a, 64)
}
