package configurator

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/plan-configurator/internal/pricing"
)

// ModemOption is one priced cell of the modem bundle table.
type ModemOption struct {
	BundleTier  pricing.BundleTier  `json:"bundleTier"`
	PaymentTerm pricing.PaymentTerm `json:"paymentTerm"`
	Label       string              `json:"label"`
	Price       decimal.Decimal     `json:"price"`
}

// PriceOption is a named monthly price.
type PriceOption struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// Options lists everything the addon step can offer.
type Options struct {
	Modems        []ModemOption     `json:"modems"`
	PhonePlans    []PriceOption     `json:"phonePlans"`
	PBXPlans      []PriceOption     `json:"pbxPlans"`
	PBXAddons     []PriceOption     `json:"pbxAddons"`
	Handsets      []pricing.Handset `json:"handsets"`
	LimitedModels []string          `json:"limitedModels"`
}

// AddonOptions renders the fixed catalog tables.
func AddonOptions() Options {
	out := Options{
		Handsets:      pricing.HandsetModels(),
		LimitedModels: pricing.LimitedHandsetModels(),
	}
	for _, tier := range []pricing.BundleTier{pricing.TierModemOnly, pricing.TierOneExtender, pricing.TierTwoExtenders} {
		for _, term := range []pricing.PaymentTerm{pricing.TermOutright, pricing.Term12, pricing.Term24} {
			price, err := pricing.ModemBundlePrice(tier, term)
			if err != nil {
				continue
			}
			label, _ := pricing.ModemBundleLabel(tier, term)
			out.Modems = append(out.Modems, ModemOption{BundleTier: tier, PaymentTerm: term, Label: label, Price: price})
		}
	}
	for _, id := range []string{pricing.PhonePAYG, pricing.PhonePack} {
		label, _ := pricing.PhoneServiceLabel(id)
		out.PhonePlans = append(out.PhonePlans, PriceOption{ID: id, Label: label, Price: pricing.PhoneServiceUnitPrice(id)})
	}
	for _, name := range pricing.PBXPlans() {
		out.PBXPlans = append(out.PBXPlans, PriceOption{ID: name, Label: name, Price: pricing.PBXPlanUnitPrice(name)})
	}
	out.PBXAddons = []PriceOption{
		{ID: "callRecording", Label: "Call recording", Price: pricing.CallRecordingUnitPrice},
		{ID: "ivr", Label: "IVR", Price: pricing.IVRUnitPrice},
		{ID: "queue", Label: "Call queue", Price: pricing.QueueUnitPrice},
	}
	return out
}
