package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/configurator"
	dbgen "github.com/noah-isme/plan-configurator/internal/db/gen"
	"github.com/noah-isme/plan-configurator/internal/events"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/otp"
	"github.com/noah-isme/plan-configurator/internal/pricing"
)

const (
	KindResidential = "residential"
	KindBusiness    = "business"
)

var (
	// ErrNotFound is returned when a contract does not exist.
	ErrNotFound = errors.New("contract: not found")
	// ErrVerificationRequired is returned when the OTP verification token is missing or spent.
	ErrVerificationRequired = errors.New("contract: phone verification required")
)

// Customer holds the applicant details common to both contract kinds.
type Customer struct {
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Phone       string `json:"phone" validate:"required,max=32"`
	Address     string `json:"address" validate:"required,max=300"`
	DateOfBirth string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Business holds the extra details a business contract requires.
type Business struct {
	CompanyName string `json:"companyName" validate:"required,max=200"`
	ABN         string `json:"abn" validate:"required,len=11,numeric"`
	ContactRole string `json:"contactRole,omitempty" validate:"omitempty,max=100"`
}

// SubmitInput is the contract submission request. Exactly one of SessionID and
// Selection identifies what is being ordered.
type SubmitInput struct {
	Customer    Customer           `json:"customer" validate:"required"`
	Business    *Business          `json:"business,omitempty"`
	SessionID   string             `json:"sessionId,omitempty" validate:"omitempty,uuid"`
	Selection   *pricing.Selection `json:"selection,omitempty"`
	OTPToken    string             `json:"otpToken" validate:"required,max=128"`
	StartDate   string             `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	AcceptTerms bool               `json:"acceptTerms"`
}

// Receipt is returned to the customer after a successful submission.
type Receipt struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Status      string             `json:"status"`
	Items       []pricing.LineItem `json:"items"`
	Total       decimal.Decimal    `json:"total"`
	Warnings    []string           `json:"warnings,omitempty"`
	SubmittedAt time.Time          `json:"submittedAt"`
}

// Record is the admin view of a stored contract.
type Record struct {
	ID               string           `json:"id"`
	Kind             string           `json:"kind"`
	SessionID        string           `json:"sessionId,omitempty"`
	CustomerName     string           `json:"customerName"`
	CustomerEmail    string           `json:"customerEmail"`
	CustomerPhone    string           `json:"customerPhone"`
	Payload          json.RawMessage  `json:"payload"`
	Total            *decimal.Decimal `json:"total"`
	Status           string           `json:"status"`
	DeliveryAttempts int32            `json:"deliveryAttempts"`
	LastError        string           `json:"lastError,omitempty"`
	ArchiveKey       string           `json:"archiveKey,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	DeliveredAt      *time.Time       `json:"deliveredAt,omitempty"`
}

// Store is the contract persistence.
type Store interface {
	InsertContract(ctx context.Context, arg dbgen.InsertContractParams) (dbgen.Contract, error)
	GetContract(ctx context.Context, id pgtype.UUID) (dbgen.Contract, error)
	ListContracts(ctx context.Context, arg dbgen.ListContractsParams) ([]dbgen.Contract, error)
}

// SessionSource loads configurator sessions.
type SessionSource interface {
	Get(ctx context.Context, id string) (configurator.Session, error)
}

// Verifier consumes OTP verification tokens. Restore hands a consumed token
// back when the submission it was spent on could not be stored.
type Verifier interface {
	Consume(ctx context.Context, token, phone, kind string) error
	Restore(ctx context.Context, token, phone, kind string) error
}

// EventEmitter records the submitted event and schedules background work.
type EventEmitter interface {
	Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (dbgen.DomainEvent, error)
}

// Service implements contract submission and the admin read side.
type Service struct {
	store    Store
	sessions SessionSource
	verifier Verifier
	events   EventEmitter
	now      func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    Store
	Sessions SessionSource
	Verifier Verifier
	Events   EventEmitter
	Now      func() time.Time
}

// NewService constructs a contract service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("contract: store is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("contract: verifier is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, sessions: cfg.Sessions, verifier: cfg.Verifier, events: cfg.Events, now: now}, nil
}

// Submit validates the request, recomputes the quote server side, consumes the
// verification token and stores the flattened contract.
func (s *Service) Submit(ctx context.Context, kind string, in SubmitInput) (Receipt, error) {
	receipt, err := s.submit(ctx, kind, in)
	if err != nil {
		obs.ObserveContract(kind, "rejected")
		return Receipt{}, err
	}
	obs.ObserveContract(kind, "submitted")
	return receipt, nil
}

func (s *Service) submit(ctx context.Context, kind string, in SubmitInput) (Receipt, error) {
	if kind != KindResidential && kind != KindBusiness {
		return Receipt{}, common.FieldError("kind", "unknown contract kind")
	}
	trimCustomer(&in.Customer)
	if kind == KindResidential {
		in.Business = nil
	}
	if err := common.ValidateStruct(in); err != nil {
		return Receipt{}, err
	}
	if kind == KindBusiness && in.Business == nil {
		return Receipt{}, common.FieldError("business", "business details are required")
	}
	if !in.AcceptTerms {
		return Receipt{}, common.FieldError("acceptTerms", "the terms and conditions must be accepted")
	}
	phone, err := otp.NormalizePhone(in.Customer.Phone)
	if err != nil {
		return Receipt{}, err
	}

	sel, capWarnings, err := s.resolveSelection(ctx, kind, in)
	if err != nil {
		return Receipt{}, err
	}
	if sel.PBX != nil && kind != KindBusiness {
		return Receipt{}, common.FieldError("pbx", "PBX is only available on business contracts")
	}
	if sel.Plan == nil {
		return Receipt{}, common.FieldError("plan", "a plan must be selected")
	}
	if _, ok := sel.Plan.BilledPrice(); !ok {
		return Receipt{}, common.FieldError("plan", "the selected plan has no price")
	}

	quote := pricing.Compose(sel)
	quote.Warnings = append(capWarnings, quote.Warnings...)
	obs.ObserveQuote("contract", len(quote.Warnings))
	submittedAt := s.now().UTC()
	in.Customer.Phone = phone
	payload := BuildPayload(kind, in, quote, submittedAt)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode contract payload: %w", err)
	}

	if err := s.verifier.Consume(ctx, in.OTPToken, phone, kind); err != nil {
		if errors.Is(err, otp.ErrInvalidToken) {
			return Receipt{}, ErrVerificationRequired
		}
		return Receipt{}, err
	}

	total := quote.Total
	row, err := s.store.InsertContract(ctx, dbgen.InsertContractParams{
		Kind:          kind,
		SessionID:     common.Text(in.SessionID),
		CustomerName:  in.Customer.FirstName + " " + in.Customer.LastName,
		CustomerEmail: strings.ToLower(in.Customer.Email),
		CustomerPhone: phone,
		Payload:       encoded,
		Total:         common.Numeric(&total),
	})
	if err != nil {
		if restoreErr := s.verifier.Restore(context.WithoutCancel(ctx), in.OTPToken, phone, kind); restoreErr != nil {
			zerolog.Ctx(ctx).Error().Err(restoreErr).Msg("restore verification token")
		}
		return Receipt{}, fmt.Errorf("insert contract: %w", err)
	}

	id := common.UUIDString(row.ID)
	if s.events != nil {
		_, emitErr := s.events.Emit(ctx, events.TopicContractSubmitted, row.ID, map[string]any{
			"kind":  kind,
			"total": total.StringFixed(2),
			"lines": len(quote.Items),
		})
		if emitErr != nil {
			zerolog.Ctx(ctx).Error().Err(emitErr).Str("contract_id", id).Msg("contract submitted event")
		}
	}

	return Receipt{
		ID:          id,
		Kind:        kind,
		Status:      row.Status,
		Items:       quote.Items,
		Total:       total,
		Warnings:    quote.Warnings,
		SubmittedAt: submittedAt,
	}, nil
}

// resolveSelection loads the selection being ordered. Inline selections are a
// fresh write, so their handsets go through the cap; the returned messages
// describe any clamping. Saved sessions were capped as they were edited.
func (s *Service) resolveSelection(ctx context.Context, kind string, in SubmitInput) (pricing.Selection, []string, error) {
	switch {
	case in.SessionID != "" && in.Selection != nil:
		return pricing.Selection{}, nil, common.FieldError("selection", "provide either sessionId or selection, not both")
	case in.SessionID != "":
		if s.sessions == nil {
			return pricing.Selection{}, nil, common.FieldError("sessionId", "sessions are not available")
		}
		sess, err := s.sessions.Get(ctx, in.SessionID)
		if errors.Is(err, configurator.ErrNotFound) {
			return pricing.Selection{}, nil, common.FieldError("sessionId", "configurator session not found or expired")
		}
		if err != nil {
			return pricing.Selection{}, nil, err
		}
		if sess.Kind != kind {
			return pricing.Selection{}, nil, common.FieldError("sessionId", "session kind does not match the contract kind")
		}
		return sess.Selection, nil, nil
	case in.Selection != nil:
		sel := pricing.Normalize(*in.Selection)
		if sel.PBX == nil {
			return sel, nil, nil
		}
		pbx, clamped := pricing.EnforceHandsetCap(*sel.PBX)
		sel.PBX = &pbx
		msgs := make([]string, 0, len(clamped))
		for _, w := range clamped {
			obs.ObserveHandsetClamp()
			msgs = append(msgs, w.Message())
		}
		return sel, msgs, nil
	default:
		return pricing.Selection{}, nil, common.FieldError("selection", "sessionId or selection is required")
	}
}

// List returns stored contracts, newest first, optionally filtered by kind.
func (s *Service) List(ctx context.Context, kind string, page common.Page) ([]Record, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "" && kind != KindResidential && kind != KindBusiness {
		return nil, common.FieldError("kind", "unknown contract kind")
	}
	if page.PerPage <= 0 || page.PerPage > 100 {
		page.PerPage = 20
	}
	rows, err := s.store.ListContracts(ctx, dbgen.ListContractsParams{
		Kind:   common.Text(kind),
		Limit:  page.Limit(),
		Offset: page.Offset(),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	return out, nil
}

// Get returns one stored contract.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	uid, err := common.ParseUUID("id", id)
	if err != nil {
		return Record{}, err
	}
	row, err := s.store.GetContract(ctx, uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return toRecord(row), nil
}

func toRecord(row dbgen.Contract) Record {
	rec := Record{
		ID:               common.UUIDString(row.ID),
		Kind:             row.Kind,
		SessionID:        common.TextValue(row.SessionID),
		CustomerName:     row.CustomerName,
		CustomerEmail:    row.CustomerEmail,
		CustomerPhone:    row.CustomerPhone,
		Payload:          json.RawMessage(row.Payload),
		Total:            common.Decimal(row.Total),
		Status:           row.Status,
		DeliveryAttempts: row.DeliveryAttempts,
		LastError:        common.TextValue(row.LastError),
		ArchiveKey:       common.TextValue(row.ArchiveKey),
		CreatedAt:        common.Time(row.CreatedAt),
	}
	if row.DeliveredAt.Valid {
		t := row.DeliveredAt.Time
		rec.DeliveredAt = &t
	}
	return rec
}

func trimCustomer(c *Customer) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
}
