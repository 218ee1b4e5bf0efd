package pricing

import "strings"

// Legacy hardware item identifiers.
const (
	LegacyModemID    = "modem"
	LegacyExtenderID = "extender"
)

// MigrateLegacyHardware converts the per-item hardware shape into a bundle
// selection. Only one modem with up to two extenders maps onto the bundle
// table; anything else is reported as not migratable and keeps its flat prices.
func MigrateLegacyHardware(items []HardwareItem) (*ModemBundleSelection, bool) {
	if len(items) == 0 {
		return nil, false
	}
	modems, extenders := 0, 0
	for _, item := range items {
		switch strings.ToLower(strings.TrimSpace(item.ID)) {
		case LegacyModemID:
			modems++
		case LegacyExtenderID:
			extenders++
		default:
			return nil, false
		}
	}
	if modems != 1 || extenders > int(TierTwoExtenders) {
		return nil, false
	}
	return &ModemBundleSelection{BundleTier: BundleTier(extenders), PaymentTerm: TermOutright}, true
}

// Normalize returns a copy of the selection with handset keys trimmed and legacy
// hardware folded into a bundle when possible. Items that cannot be mapped are
// left in place.
func Normalize(sel Selection) Selection {
	if sel.PBX != nil && len(sel.PBX.HandsetQuantities) > 0 {
		pbx := *sel.PBX
		pbx.HandsetQuantities = normalizeHandsets(pbx.HandsetQuantities)
		sel.PBX = &pbx
	}
	if sel.Modem != nil || len(sel.LegacyHardware) == 0 {
		return sel
	}
	if bundle, ok := MigrateLegacyHardware(sel.LegacyHardware); ok {
		sel.Modem = bundle
		sel.LegacyHardware = nil
	}
	return sel
}
