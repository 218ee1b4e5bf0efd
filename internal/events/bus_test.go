package events_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/events"
)

type stubStore struct {
	params []dbgen.InsertDomainEventParams
	err    error
}

func (s *stubStore) InsertDomainEvent(_ context.Context, arg dbgen.InsertDomainEventParams) (dbgen.InsertDomainEventRow, error) {
	if s.err != nil {
		return dbgen.InsertDomainEventRow{}, s.err
	}
	s.params = append(s.params, arg)
	return dbgen.InsertDomainEventRow{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Topic:       arg.Topic,
		AggregateID: arg.AggregateID,
		Payload:     arg.Payload,
		OccurredAt:  pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}, nil
}

type captureScheduler struct {
	events []dbgen.DomainEvent
	err    error
}

func (c *captureScheduler) Schedule(_ context.Context, ev dbgen.DomainEvent) error {
	c.events = append(c.events, ev)
	return c.err
}

func contractID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.MustParse("8d3c3a2e-1f00-4b7a-9a55-0c5b1e1f2a10"), Valid: true}
}

func TestEmitPersistsAndSchedules(t *testing.T) {
	store := &stubStore{}
	sched := &captureScheduler{}
	var buf bytes.Buffer
	bus := &events.Bus{
		Store:     store,
		Scheduler: sched,
		Notifiers: []events.Notifier{events.LogNotifier{Logger: zerolog.New(&buf)}},
	}

	ev, err := bus.Emit(context.Background(), " contract.submitted ", contractID(), map[string]string{"kind": "business"})
	require.NoError(t, err)
	require.Equal(t, events.TopicContractSubmitted, ev.Topic)
	require.JSONEq(t, `{"kind":"business"}`, string(ev.Payload))
	require.Len(t, store.params, 1)
	require.Len(t, sched.events, 1)
	require.Equal(t, ev.ID, sched.events[0].ID)
	require.Contains(t, buf.String(), "8d3c3a2e-1f00-4b7a-9a55-0c5b1e1f2a10")
	require.Contains(t, buf.String(), "domain_event")
}

func TestEmitPayloadVariants(t *testing.T) {
	store := &stubStore{}
	bus := &events.Bus{Store: store}
	ctx := context.Background()

	ev, err := bus.Emit(ctx, events.TopicContractArchived, contractID(), nil)
	require.NoError(t, err)
	require.Equal(t, "{}", string(ev.Payload))

	ev, err = bus.Emit(ctx, events.TopicContractArchived, contractID(), []byte(`{"key":"a/b.json"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"key":"a/b.json"}`, string(ev.Payload))

	_, err = bus.Emit(ctx, events.TopicContractArchived, contractID(), []byte(`{oops`))
	require.Error(t, err)
}

func TestEmitValidation(t *testing.T) {
	var nilBus *events.Bus
	_, err := nilBus.Emit(context.Background(), events.TopicContractSubmitted, contractID(), nil)
	require.Error(t, err)

	bus := &events.Bus{Store: &stubStore{}}
	_, err = bus.Emit(context.Background(), "  ", contractID(), nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicContractSubmitted, pgtype.UUID{}, nil)
	require.Error(t, err)
}

func TestEmitReturnsEventWhenSchedulingFails(t *testing.T) {
	sched := &captureScheduler{err: errors.New("redis down")}
	bus := &events.Bus{Store: &stubStore{}, Scheduler: sched}

	ev, err := bus.Emit(context.Background(), events.TopicContractSubmitted, contractID(), nil)
	require.Error(t, err)
	require.True(t, ev.ID.Valid)
	require.Contains(t, err.Error(), "redis down")
}

func TestEmitStoreFailure(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{err: errors.New("db down")}, Scheduler: &captureScheduler{}}
	ev, err := bus.Emit(context.Background(), events.TopicContractSubmitted, contractID(), nil)
	require.Error(t, err)
	require.False(t, ev.ID.Valid)
}

func TestContractTopics(t *testing.T) {
	require.Equal(t, events.TopicContractSubmitted, events.ContractTopics()[0])
	require.Len(t, events.ContractTopics(), 4)
}
