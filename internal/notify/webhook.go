package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/plan-configurator/internal/common"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/events"
	"github.com/noah-isme/plan-configurator/internal/lock"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/queue"
	"github.com/noah-isme/plan-configurator/internal/resilience"
)

// Delivery states written to contracts.status.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusDead      = "dead"
)

// ContractStore is the persistence needed to deliver a contract.
type ContractStore interface {
	GetContract(ctx context.Context, id pgtype.UUID) (dbgen.Contract, error)
	RecordContractDelivery(ctx context.Context, arg dbgen.RecordContractDeliveryParams) error
}

// EventEmitter records delivery outcomes as domain events.
type EventEmitter interface {
	Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (dbgen.DomainEvent, error)
}

// Locker serialises deliveries of the same contract across workers.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Deliverer posts submitted contracts to the downstream webhook consumer. It is
// registered as the asynq handler for queue.TypeContractDeliver.
type Deliverer struct {
	Store   ContractStore
	HTTP    resilience.HTTPClient
	URL     string
	Secret  string
	Locker  Locker
	LockTTL time.Duration
	Events  EventEmitter
	Now     func() time.Time
}

type envelope struct {
	ContractID  string          `json:"contractId"`
	Kind        string          `json:"kind"`
	Total       string          `json:"total"`
	SubmittedAt time.Time       `json:"submittedAt"`
	Contract    json.RawMessage `json:"contract"`
}

// ProcessTask implements asynq.Handler.
func (d *Deliverer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	task, err := queue.ParseContractTask(t)
	if err != nil {
		return err
	}
	if d.Locker == nil {
		return d.Deliver(ctx, task.ContractID)
	}
	ttl := d.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	err = d.Locker.WithLock(ctx, lock.DeliveryKey(task.ContractID), ttl, func(ctx context.Context) error {
		return d.Deliver(ctx, task.ContractID)
	})
	if errors.Is(err, lock.ErrBusy) {
		return fmt.Errorf("notify: delivery of %s already in progress: %w", task.ContractID, err)
	}
	return err
}

// Deliver sends one contract. Contracts already delivered are skipped so a
// redelivered task never posts twice.
func (d *Deliverer) Deliver(ctx context.Context, contractID string) error {
	ctx, span := otel.Tracer("notify.Deliverer").Start(ctx, "Deliverer.Deliver")
	defer span.End()
	span.SetAttributes(attribute.String("contract.id", contractID))

	if d.Store == nil {
		return fmt.Errorf("notify: store not configured: %w", asynq.SkipRetry)
	}
	if err := validateURL(d.URL); err != nil {
		return fmt.Errorf("notify: %v: %w", err, asynq.SkipRetry)
	}
	id, err := common.ParseUUID("contractId", contractID)
	if err != nil {
		return fmt.Errorf("notify: %v: %w", err, asynq.SkipRetry)
	}
	contract, err := d.Store.GetContract(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("notify: contract %s not found: %w", contractID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("notify: load contract: %w", err)
	}
	if contract.Status == StatusDelivered {
		span.AddEvent("delivery replay prevented")
		return nil
	}

	body, err := json.Marshal(envelope{
		ContractID:  contractID,
		Kind:        contract.Kind,
		Total:       totalString(contract.Total),
		SubmittedAt: common.Time(contract.CreatedAt),
		Contract:    json.RawMessage(contract.Payload),
	})
	if err != nil {
		return fmt.Errorf("notify: encode envelope: %v: %w", err, asynq.SkipRetry)
	}

	start := time.Now()
	status, sendErr := d.post(ctx, contractID, body)
	elapsed := obs.DurationMillis(time.Since(start))
	if sendErr == nil && status >= 200 && status < 300 {
		observeDelivery("delivered", elapsed)
		if err := d.Store.RecordContractDelivery(ctx, dbgen.RecordContractDeliveryParams{ID: id, Status: StatusDelivered}); err != nil {
			return fmt.Errorf("notify: record delivery: %w", err)
		}
		d.emit(ctx, events.TopicContractDelivered, id, map[string]any{"status": status})
		return nil
	}

	if sendErr == nil {
		sendErr = fmt.Errorf("webhook responded %d", status)
	}
	span.RecordError(sendErr)
	final := finalAttempt(ctx)
	state := StatusFailed
	if final {
		state = StatusDead
	}
	observeDelivery(state, elapsed)
	if err := d.Store.RecordContractDelivery(ctx, dbgen.RecordContractDeliveryParams{
		ID:        id,
		Status:    state,
		LastError: common.Text(sendErr.Error()),
	}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("contract_id", contractID).Msg("record contract delivery failure")
	}
	if final {
		d.emit(ctx, events.TopicContractDeliveryFailed, id, map[string]any{"error": sendErr.Error()})
	}
	return fmt.Errorf("notify: deliver contract %s: %w", contractID, sendErr)
}

func (d *Deliverer) post(ctx context.Context, contractID string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	ts := now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "plan-configurator-webhooks/1.0")
	req.Header.Set("X-Contract-ID", contractID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", contractID)
	req.Header.Set("X-Signature", ComputeSignature(d.Secret, ts, contractID, body))

	resp, err := d.HTTP.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

func (d *Deliverer) emit(ctx context.Context, topic string, id pgtype.UUID, payload any) {
	if d.Events == nil {
		return
	}
	if _, err := d.Events.Emit(ctx, topic, id, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("emit delivery event")
	}
}

func finalAttempt(ctx context.Context) bool {
	retry, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retry >= maxRetry
}

func observeDelivery(result string, ms float64) {
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if obs.WebhookAttemptLatency != nil {
		obs.WebhookAttemptLatency.WithLabelValues(result).Observe(ms)
	}
}

func totalString(n pgtype.Numeric) string {
	if d := common.Decimal(n); d != nil {
		return d.StringFixed(2)
	}
	return "0.00"
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
		return nil
	default:
		return errors.New("webhook url must be http or https")
	}
}

// ComputeSignature calculates the webhook signature: HMAC-SHA256 over
// "<ts>.<contractID>.<body>" keyed with the shared secret, hex encoded.
func ComputeSignature(secret string, ts int64, contractID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(contractID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeout time.Duration, insecure bool) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}
