package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownTier is returned when a modem bundle tier is outside the catalog table.
	ErrUnknownTier = errors.New("pricing: unknown modem bundle tier")
	// ErrUnknownTerm is returned when a payment term is outside the catalog table.
	ErrUnknownTerm = errors.New("pricing: unknown payment term")
)

// BundleTier identifies the modem/extender combination.
type BundleTier int

const (
	// TierModemOnly is one modem without extenders.
	TierModemOnly BundleTier = 0
	// TierOneExtender is one modem plus one mesh extender.
	TierOneExtender BundleTier = 1
	// TierTwoExtenders is one modem plus two mesh extenders.
	TierTwoExtenders BundleTier = 2
)

// PaymentTerm is how the hardware bundle is paid for.
type PaymentTerm string

const (
	TermOutright PaymentTerm = "outright"
	Term12       PaymentTerm = "12"
	Term24       PaymentTerm = "24"
)

// UnmarshalJSON accepts both "12" and 12 for the monthly terms.
func (t *PaymentTerm) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("payment term: %w", err)
		}
		raw = n.String()
	}
	*t = PaymentTerm(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

// Months returns the instalment count for monthly terms and 0 for outright.
func (t PaymentTerm) Months() int {
	switch t {
	case Term12:
		return 12
	case Term24:
		return 24
	default:
		return 0
	}
}

// Valid reports whether the term exists in the bundle table.
func (t PaymentTerm) Valid() bool {
	return t == TermOutright || t == Term12 || t == Term24
}

// PBX hosted plan names.
const (
	PBXPlanUnlimited = "Hosted UNLIMITED"
	PBXPlanPAYG      = "Hosted PAYG"
)

// Phone service plan identifiers.
const (
	PhonePAYG = "payg"
	PhonePack = "pack"
)

var (
	modemBundleTable = map[BundleTier]map[PaymentTerm]decimal.Decimal{
		TierModemOnly: {
			TermOutright: decimal.NewFromInt(170),
			Term12:       decimal.NewFromInt(15),
			Term24:       decimal.NewFromInt(8),
		},
		TierOneExtender: {
			TermOutright: decimal.NewFromInt(235),
			Term12:       decimal.NewFromInt(20),
			Term24:       decimal.NewFromInt(10),
		},
		TierTwoExtenders: {
			TermOutright: decimal.NewFromInt(325),
			Term12:       decimal.NewFromInt(25),
			Term24:       decimal.NewFromInt(15),
		},
	}

	bundleTierNames = map[BundleTier]string{
		TierModemOnly:    "1 Modem",
		TierOneExtender:  "1 Modem + 1 Extender",
		TierTwoExtenders: "1 Modem + 2 Extenders",
	}

	pbxPlanTable = map[string]decimal.Decimal{
		PBXPlanUnlimited: decimal.RequireFromString("33.00"),
		PBXPlanPAYG:      decimal.RequireFromString("5.50"),
	}

	phoneServiceTable = map[string]decimal.Decimal{
		PhonePAYG: decimal.Zero,
		PhonePack: decimal.NewFromInt(10),
	}

	phoneServiceLabels = map[string]string{
		PhonePAYG: "Pay as you go calls",
		PhonePack: "$10/mth Unlimited call pack",
	}

	// CallRecordingUnitPrice is charged per recorded seat each month.
	CallRecordingUnitPrice = decimal.RequireFromString("2.95")
	// IVRUnitPrice is charged per IVR menu each month.
	IVRUnitPrice = decimal.RequireFromString("2.95")
	// QueueUnitPrice is charged per call queue each month.
	QueueUnitPrice = decimal.RequireFromString("4.95")
)

// Handset describes a priced PBX handset model.
type Handset struct {
	Model     string          `json:"model"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Limited   bool            `json:"limited"`
}

// handsetTable is kept in display order; line items follow this order.
var handsetTable = []Handset{
	{Model: "Yealink T31G", UnitPrice: decimal.NewFromInt(129), Limited: true},
	{Model: "Yealink T43U", UnitPrice: decimal.NewFromInt(189), Limited: true},
	{Model: "Yealink T54W", UnitPrice: decimal.NewFromInt(299), Limited: true},
	{Model: "Yealink W73P", UnitPrice: decimal.NewFromInt(249)},
	{Model: "Yealink CP925", UnitPrice: decimal.NewFromInt(699)},
	{Model: "Yealink BH72", UnitPrice: decimal.NewFromInt(229)},
}

// ModemBundlePrice returns the bundle price for the tier and payment term.
func ModemBundlePrice(tier BundleTier, term PaymentTerm) (decimal.Decimal, error) {
	byTerm, ok := modemBundleTable[tier]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	price, ok := byTerm[term]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownTerm, term)
	}
	return price, nil
}

// ModemBundleName returns the human name of a bundle tier.
func ModemBundleName(tier BundleTier) (string, bool) {
	name, ok := bundleTierNames[tier]
	return name, ok
}

// ModemBundleLabel renders the summary label, e.g. "1 Modem + 1 Extender — $235 / Upfront".
func ModemBundleLabel(tier BundleTier, term PaymentTerm) (string, error) {
	price, err := ModemBundlePrice(tier, term)
	if err != nil {
		return "", err
	}
	name, _ := ModemBundleName(tier)
	if term == TermOutright {
		return fmt.Sprintf("%s — $%s / Upfront", name, price.String()), nil
	}
	return fmt.Sprintf("%s — $%s/mth over %d months", name, price.String(), term.Months()), nil
}

// PBXPlanUnitPrice returns the per-user monthly price of a hosted PBX plan, or zero.
func PBXPlanUnitPrice(planName string) decimal.Decimal {
	if price, ok := pbxPlanTable[strings.TrimSpace(planName)]; ok {
		return price
	}
	return decimal.Zero
}

// PBXPlans lists the hosted PBX plan names.
func PBXPlans() []string {
	return []string{PBXPlanUnlimited, PBXPlanPAYG}
}

// PBXHandsetUnitPrice returns the handset price, or zero for unknown models.
func PBXHandsetUnitPrice(model string) decimal.Decimal {
	if h, ok := lookupHandset(model); ok {
		return h.UnitPrice
	}
	return decimal.Zero
}

// HandsetModels returns a copy of the handset table in catalog order.
func HandsetModels() []Handset {
	out := make([]Handset, len(handsetTable))
	copy(out, handsetTable)
	return out
}

// LimitedHandsetModels returns the models whose combined quantity is capped.
func LimitedHandsetModels() []string {
	var out []string
	for _, h := range handsetTable {
		if h.Limited {
			out = append(out, h.Model)
		}
	}
	return out
}

// IsLimitedHandset reports whether the model belongs to the capped set.
func IsLimitedHandset(model string) bool {
	h, ok := lookupHandset(model)
	return ok && h.Limited
}

// PhoneServiceUnitPrice returns the monthly price of a phone plan, or zero.
func PhoneServiceUnitPrice(planID string) decimal.Decimal {
	if price, ok := phoneServiceTable[normalizePhonePlan(planID)]; ok {
		return price
	}
	return decimal.Zero
}

// PhoneServiceLabel returns the summary label for a phone plan.
func PhoneServiceLabel(planID string) (string, bool) {
	label, ok := phoneServiceLabels[normalizePhonePlan(planID)]
	return label, ok
}

func lookupHandset(model string) (Handset, bool) {
	model = strings.TrimSpace(model)
	for _, h := range handsetTable {
		if h.Model == model {
			return h, true
		}
	}
	return Handset{}, false
}

func normalizePhonePlan(planID string) string {
	return strings.ToLower(strings.TrimSpace(planID))
}
