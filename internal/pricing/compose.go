package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineKind categorises a line item; the contract payload uses it as the slot heading.
type LineKind string

const (
	KindPlan       LineKind = "plan"
	KindModem      LineKind = "modem"
	KindHardware   LineKind = "hardware"
	KindPhone      LineKind = "phone"
	KindPBXPlan    LineKind = "pbx_plan"
	KindPBXAddon   LineKind = "pbx_addon"
	KindPBXHandset LineKind = "pbx_handset"
)

const defaultPlanName = "Plan"

// PlanSelection is the snapshot of the chosen internet plan.
type PlanSelection struct {
	Title              string           `json:"title"`
	Subtitle           string           `json:"subtitle,omitempty"`
	ActualPrice        *decimal.Decimal `json:"actualPrice,omitempty"`
	DiscountPrice      *decimal.Decimal `json:"discountPrice,omitempty"`
	Speed              string           `json:"speed,omitempty"`
	TermsAndConditions []string         `json:"termsAndConditions,omitempty"`
	Recommendation     string           `json:"recommendation,omitempty"`
}

// BilledPrice returns the discount price when set, else the actual price, else zero.
// The boolean is false when neither price is present.
func (p PlanSelection) BilledPrice() (decimal.Decimal, bool) {
	switch {
	case p.DiscountPrice != nil:
		return *p.DiscountPrice, true
	case p.ActualPrice != nil:
		return *p.ActualPrice, true
	default:
		return decimal.Zero, false
	}
}

// Label returns the subtitle, then the title, then "Plan".
func (p PlanSelection) Label() string {
	if s := strings.TrimSpace(p.Subtitle); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.Title); s != "" {
		return s
	}
	return defaultPlanName
}

// ModemBundleSelection is the bundled modem hardware addon.
type ModemBundleSelection struct {
	BundleTier  BundleTier  `json:"bundleTier"`
	PaymentTerm PaymentTerm `json:"paymentTerm"`
}

// HardwareItem is the legacy per-item hardware shape with a flat price.
type HardwareItem struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// PhoneServiceSelection is the voice addon.
type PhoneServiceSelection struct {
	PlanID string `json:"planId"`
}

// Selection is everything the customer has chosen so far. Nil members contribute no lines.
type Selection struct {
	Plan           *PlanSelection         `json:"plan,omitempty"`
	Modem          *ModemBundleSelection  `json:"modem,omitempty"`
	LegacyHardware []HardwareItem         `json:"legacyHardware,omitempty"`
	Phone          *PhoneServiceSelection `json:"phone,omitempty"`
	PBX            *PBXConfiguration      `json:"pbx,omitempty"`
}

// LineItem is one priced row of a quote.
type LineItem struct {
	Kind      LineKind        `json:"kind"`
	Label     string          `json:"label"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Quote is the composed order: line items in priority order and their sum.
type Quote struct {
	Items    []LineItem      `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Compose builds the itemised quote for a selection. It never fails: unknown
// catalog references price at zero and negative inputs are clamped.
func Compose(sel Selection) Quote {
	c := composer{items: make([]LineItem, 0, 8)}

	if sel.Plan != nil {
		if price, ok := sel.Plan.BilledPrice(); ok {
			c.add(KindPlan, sel.Plan.Label(), 1, price)
		}
	}

	switch {
	case sel.Modem != nil:
		c.addModemBundle(*sel.Modem)
	case len(sel.LegacyHardware) > 0:
		for _, item := range sel.LegacyHardware {
			label := strings.TrimSpace(item.Label)
			if label == "" {
				label = strings.TrimSpace(item.ID)
			}
			c.add(KindHardware, label, 1, item.Price)
		}
	}

	if sel.Phone != nil {
		if label, ok := PhoneServiceLabel(sel.Phone.PlanID); ok {
			c.add(KindPhone, label, 1, PhoneServiceUnitPrice(sel.Phone.PlanID))
		}
	}

	if sel.PBX != nil {
		c.addPBX(*sel.PBX)
	}

	return c.quote()
}

type composer struct {
	items    []LineItem
	warnings []string
}

func (c *composer) add(kind LineKind, label string, qty int, unit decimal.Decimal) {
	qty = clampQuantity(qty)
	unit = clampPrice(unit)
	c.items = append(c.items, LineItem{
		Kind:      kind,
		Label:     label,
		Quantity:  qty,
		UnitPrice: unit,
		Subtotal:  unit.Mul(decimal.NewFromInt(int64(qty))),
	})
}

func (c *composer) addModemBundle(sel ModemBundleSelection) {
	label, err := ModemBundleLabel(sel.BundleTier, sel.PaymentTerm)
	if err != nil {
		c.warnings = append(c.warnings, fmt.Sprintf("modem bundle ignored: %v", err))
		return
	}
	price, _ := ModemBundlePrice(sel.BundleTier, sel.PaymentTerm)
	c.add(KindModem, label, 1, price)
}

func (c *composer) addPBX(cfg PBXConfiguration) {
	plan := strings.TrimSpace(cfg.SelectedPlan)
	if plan != "" && cfg.NumUsers > 0 {
		c.add(KindPBXPlan, fmt.Sprintf("%s x%d", plan, cfg.NumUsers), cfg.NumUsers, PBXPlanUnitPrice(plan))
	}
	if cfg.CallRecordingEnabled && cfg.CallRecordingQty > 0 {
		c.add(KindPBXAddon, fmt.Sprintf("Call recording x%d", cfg.CallRecordingQty), cfg.CallRecordingQty, CallRecordingUnitPrice)
	}
	if cfg.IVRCount > 0 {
		c.add(KindPBXAddon, fmt.Sprintf("IVR x%d", cfg.IVRCount), cfg.IVRCount, IVRUnitPrice)
	}
	if cfg.QueueCount > 0 {
		c.add(KindPBXAddon, fmt.Sprintf("Call queue x%d", cfg.QueueCount), cfg.QueueCount, QueueUnitPrice)
	}

	for _, h := range handsetTable {
		qty := cfg.HandsetQuantities[h.Model]
		if qty <= 0 {
			continue
		}
		c.add(KindPBXHandset, fmt.Sprintf("%s x%d", h.Model, qty), qty, h.UnitPrice)
	}

	if status := CapStatus(cfg); status.Over {
		c.warnings = append(c.warnings, status.Message())
	}
}

func (c *composer) quote() Quote {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Subtotal)
	}
	return Quote{Items: c.items, Total: total, Warnings: c.warnings}
}

// PBXMonthlySubtotal is the recurring PBX charge excluding handsets.
func PBXMonthlySubtotal(cfg PBXConfiguration) decimal.Decimal {
	users := decimal.NewFromInt(int64(clampQuantity(cfg.NumUsers)))
	total := PBXPlanUnitPrice(cfg.SelectedPlan).Mul(users)
	if cfg.CallRecordingEnabled {
		total = total.Add(CallRecordingUnitPrice.Mul(decimal.NewFromInt(int64(clampQuantity(cfg.CallRecordingQty)))))
	}
	total = total.Add(IVRUnitPrice.Mul(decimal.NewFromInt(int64(clampQuantity(cfg.IVRCount)))))
	total = total.Add(QueueUnitPrice.Mul(decimal.NewFromInt(int64(clampQuantity(cfg.QueueCount)))))
	return total
}

func clampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	return q
}

func clampPrice(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
