package configurator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/plan-configurator/internal/catalog"
	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/lock"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/pricing"
)

// Session kinds.
const (
	KindResidential = "residential"
	KindBusiness    = "business"
)

// ErrPBXNotAllowed is returned when a residential session tries to carry a PBX.
var ErrPBXNotAllowed = errors.New("configurator: PBX is only available on business sessions")

// Session is the saved selection state for one configurator visit.
type Session struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Selection pricing.Selection `json:"selection"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// View is a session together with its freshly composed quote.
type View struct {
	Session  Session             `json:"session"`
	Quote    pricing.Quote       `json:"quote"`
	// Warnings lists handset writes that were clamped by this request.
	Warnings []*pricing.CapWarning `json:"capWarnings,omitempty"`
}

// CreateInput starts a session.
type CreateInput struct {
	Kind string `json:"kind" validate:"omitempty,oneof=residential business"`
}

// PlanInput selects a plan either by catalog id or as an inline snapshot.
type PlanInput struct {
	ProductID string                 `json:"productId" validate:"omitempty,uuid"`
	Plan      *pricing.PlanSelection `json:"plan"`
}

// PhoneInput selects the voice addon.
type PhoneInput struct {
	PlanID string `json:"planId" validate:"required,oneof=payg pack"`
}

// PBXInput replaces the PBX plan settings. Handset quantities already on the session
// are kept; any supplied here are applied one model at a time under the cap.
type PBXInput struct {
	SelectedPlan         string         `json:"selectedPlan" validate:"required"`
	NumUsers             int            `json:"numUsers" validate:"gte=1,lte=1000"`
	IVRCount             int            `json:"ivrCount" validate:"gte=0,lte=100"`
	QueueCount           int            `json:"queueCount" validate:"gte=0,lte=100"`
	CallRecordingEnabled bool           `json:"callRecordingEnabled"`
	CallRecordingQty     int            `json:"callRecordingQty" validate:"gte=0,lte=1000"`
	HandsetQuantities    map[string]int `json:"handsetQuantities" validate:"omitempty,dive,gte=0,lte=1000"`
}

// HandsetInput sets an absolute quantity or applies a +/- step.
type HandsetInput struct {
	Quantity *int `json:"quantity" validate:"omitempty,gte=0,lte=1000"`
	Delta    *int `json:"delta" validate:"omitempty,gte=-1000,lte=1000"`
}

// PlanSource resolves catalog products into plan snapshots.
type PlanSource interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

// Locker serialises writes to one session.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service implements the configurator session operations.
type Service struct {
	store  Store
	plans  PlanSource
	locker Locker
	now    func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  Store
	Plans  PlanSource
	Locker Locker
	Now    func() time.Time
}

// NewService constructs a configurator service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("configurator: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, plans: cfg.Plans, locker: cfg.Locker, now: now}, nil
}

// Create starts an empty session.
func (s *Service) Create(ctx context.Context, in CreateInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	kind := in.Kind
	if kind == "" {
		kind = KindResidential
	}
	now := s.now().UTC()
	sess := Session{ID: uuid.NewString(), Kind: kind, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Save(ctx, sess); err != nil {
		return View{}, err
	}
	return s.view(sess, nil), nil
}

// Get loads a session. Legacy hardware is folded into a bundle on load.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, ErrNotFound
	}
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	sess.Selection = pricing.Normalize(sess.Selection)
	return sess, nil
}

// View loads a session and composes its quote.
func (s *Service) View(ctx context.Context, id string) (View, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(sess, nil), nil
}

// Quote composes the quote for a saved session.
func (s *Service) Quote(ctx context.Context, id string) (pricing.Quote, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return pricing.Quote{}, err
	}
	q := pricing.Compose(sess.Selection)
	obs.ObserveQuote("session", len(q.Warnings))
	return q, nil
}

// Delete removes a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return s.store.Delete(ctx, id)
}

// SetPlan stores a snapshot of the chosen plan.
func (s *Service) SetPlan(ctx context.Context, id string, in PlanInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	plan, err := s.resolvePlan(ctx, in)
	if err != nil {
		return View{}, err
	}
	return s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		sess.Selection.Plan = &plan
		return nil, nil
	})
}

// ClearPlan removes the plan.
func (s *Service) ClearPlan(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		sess.Selection.Plan = nil
		return nil, nil
	})
}

// SetModem selects a modem bundle and replaces any legacy hardware.
func (s *Service) SetModem(ctx context.Context, id string, in pricing.ModemBundleSelection) (View, error) {
	if _, err := pricing.ModemBundlePrice(in.BundleTier, in.PaymentTerm); err != nil {
		return View{}, &common.AppError{
			Code:       "VALIDATION_ERROR",
			Message:    "invalid modem bundle",
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
			Details:    map[string]any{"bundleTier": in.BundleTier, "paymentTerm": in.PaymentTerm},
		}
	}
	return s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		bundle := in
		sess.Selection.Modem = &bundle
		sess.Selection.LegacyHardware = nil
		return nil, nil
	})
}

// ClearModem removes the modem bundle and any legacy hardware.
func (s *Service) ClearModem(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		sess.Selection.Modem = nil
		sess.Selection.LegacyHardware = nil
		return nil, nil
	})
}

// SetPhone selects the voice addon.
func (s *Service) SetPhone(ctx context.Context, id string, in PhoneInput) (View, error) {
	in.PlanID = strings.ToLower(strings.TrimSpace(in.PlanID))
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	return s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		sess.Selection.Phone = &pricing.PhoneServiceSelection{PlanID: in.PlanID}
		return nil, nil
	})
}

// ClearPhone removes the voice addon.
func (s *Service) ClearPhone(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		sess.Selection.Phone = nil
		return nil, nil
	})
}

// SetPBX replaces the PBX plan settings on a business session. Handsets sent
// with the request are applied as one edit under the cap; lowering users or
// queues leaves existing handset quantities untouched.
func (s *Service) SetPBX(ctx context.Context, id string, in PBXInput) (View, error) {
	in.SelectedPlan = strings.TrimSpace(in.SelectedPlan)
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	if !knownPBXPlan(in.SelectedPlan) {
		return View{}, common.FieldError("selectedPlan", "unknown PBX plan")
	}
	if in.CallRecordingEnabled && in.CallRecordingQty < 1 {
		in.CallRecordingQty = 1
	}
	for model := range in.HandsetQuantities {
		if _, ok := lookupHandset(model); !ok {
			return View{}, common.FieldError("handsetQuantities", "unknown handset model "+model)
		}
	}

	var warnings []*pricing.CapWarning
	view, err := s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		if sess.Kind != KindBusiness {
			return nil, ErrPBXNotAllowed
		}
		cfg := pricing.PBXConfiguration{HandsetQuantities: map[string]int{}}
		if sess.Selection.PBX != nil {
			cfg = sess.Selection.PBX.Clone()
		}
		cfg.SelectedPlan = in.SelectedPlan
		cfg.NumUsers = in.NumUsers
		cfg.IVRCount = in.IVRCount
		cfg.QueueCount = in.QueueCount
		cfg.CallRecordingEnabled = in.CallRecordingEnabled
		cfg.CallRecordingQty = in.CallRecordingQty

		if len(in.HandsetQuantities) > 0 {
			cfg, warnings = pricing.ApplyHandsets(cfg, in.HandsetQuantities)
			for range warnings {
				obs.ObserveHandsetClamp()
			}
		}
		sess.Selection.PBX = &cfg
		return nil, nil
	})
	if err != nil {
		return View{}, err
	}
	view.Warnings = warnings
	return view, nil
}

// ClearPBX removes the PBX configuration.
func (s *Service) ClearPBX(ctx context.Context, id string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		sess.Selection.PBX = nil
		return nil, nil
	})
}

// SetHandset applies a quantity or step for one handset model under the limited-model cap.
func (s *Service) SetHandset(ctx context.Context, id, model string, in HandsetInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	if (in.Quantity == nil) == (in.Delta == nil) {
		return View{}, common.FieldError("quantity", "exactly one of quantity or delta is required")
	}
	model = strings.TrimSpace(model)
	if _, ok := lookupHandset(model); !ok {
		return View{}, &common.AppError{
			Code:       "NOT_FOUND",
			Message:    "unknown handset model",
			HTTPStatus: http.StatusNotFound,
			Details:    map[string]any{"model": model},
		}
	}
	return s.mutate(ctx, id, func(sess *Session) (*pricing.CapWarning, error) {
		if sess.Kind != KindBusiness {
			return nil, ErrPBXNotAllowed
		}
		if sess.Selection.PBX == nil {
			return nil, &common.AppError{
				Code:       "CONFLICT",
				Message:    "select a PBX plan before adding handsets",
				HTTPStatus: http.StatusConflict,
			}
		}
		var (
			cfg pricing.PBXConfiguration
			w   *pricing.CapWarning
		)
		if in.Quantity != nil {
			cfg, w = pricing.SetHandsetQuantity(*sess.Selection.PBX, model, *in.Quantity)
		} else {
			cfg, w = pricing.AdjustHandset(*sess.Selection.PBX, model, *in.Delta)
		}
		if w != nil {
			obs.ObserveHandsetClamp()
		}
		sess.Selection.PBX = &cfg
		return w, nil
	})
}

// mutate loads, edits and saves a session while holding its lock.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Session) (*pricing.CapWarning, error)) (View, error) {
	if _, err := uuid.Parse(id); err != nil {
		return View{}, ErrNotFound
	}
	var (
		sess    Session
		warning *pricing.CapWarning
	)
	apply := func(ctx context.Context) error {
		loaded, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		w, err := fn(&loaded)
		if err != nil {
			return err
		}
		loaded.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, loaded); err != nil {
			return err
		}
		sess, warning = loaded, w
		return nil
	}
	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, lock.SessionKey(id), 10*time.Second, apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		return View{}, err
	}
	return s.view(sess, warning), nil
}

func (s *Service) view(sess Session, warning *pricing.CapWarning) View {
	q := pricing.Compose(sess.Selection)
	obs.ObserveQuote("session", len(q.Warnings))
	v := View{Session: sess, Quote: q}
	if warning != nil {
		v.Warnings = []*pricing.CapWarning{warning}
	}
	return v
}

func (s *Service) resolvePlan(ctx context.Context, in PlanInput) (pricing.PlanSelection, error) {
	switch {
	case in.ProductID != "" && in.Plan != nil:
		return pricing.PlanSelection{}, common.FieldError("productId", "send either productId or plan, not both")
	case in.ProductID != "":
		if s.plans == nil {
			return pricing.PlanSelection{}, errors.New("configurator: plan source not configured")
		}
		product, err := s.plans.GetProduct(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return pricing.PlanSelection{}, common.FieldError("productId", "unknown product")
			}
			return pricing.PlanSelection{}, fmt.Errorf("resolve plan: %w", err)
		}
		return product.PlanSelection, nil
	case in.Plan != nil:
		plan := *in.Plan
		if strings.TrimSpace(plan.Title) == "" && strings.TrimSpace(plan.Subtitle) == "" {
			return pricing.PlanSelection{}, common.FieldError("plan.title", "plan title is required")
		}
		if (plan.ActualPrice != nil && plan.ActualPrice.IsNegative()) || (plan.DiscountPrice != nil && plan.DiscountPrice.IsNegative()) {
			return pricing.PlanSelection{}, common.FieldError("plan", "plan prices must not be negative")
		}
		return plan, nil
	default:
		return pricing.PlanSelection{}, common.FieldError("productId", "productId or plan is required")
	}
}

func knownPBXPlan(name string) bool {
	for _, p := range pricing.PBXPlans() {
		if p == name {
			return true
		}
	}
	return false
}

func lookupHandset(model string) (pricing.Handset, bool) {
	model = strings.TrimSpace(model)
	for _, h := range pricing.HandsetModels() {
		if h.Model == model {
			return h, true
		}
	}
	return pricing.Handset{}, false
}
