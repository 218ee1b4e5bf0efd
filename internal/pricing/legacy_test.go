package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMigrateLegacyHardware(t *testing.T) {
	bundle, ok := MigrateLegacyHardware([]HardwareItem{{ID: "modem"}, {ID: "Extender"}, {ID: "extender"}})
	require.True(t, ok)
	require.Equal(t, TierTwoExtenders, bundle.BundleTier)
	require.Equal(t, TermOutright, bundle.PaymentTerm)

	_, ok = MigrateLegacyHardware([]HardwareItem{{ID: "extender"}})
	require.False(t, ok)

	_, ok = MigrateLegacyHardware([]HardwareItem{{ID: "modem"}, {ID: "ata"}})
	require.False(t, ok)

	_, ok = MigrateLegacyHardware([]HardwareItem{{ID: "modem"}, {ID: "extender"}, {ID: "extender"}, {ID: "extender"}})
	require.False(t, ok)
}

func TestNormalizeFoldsLegacyIntoBundle(t *testing.T) {
	sel := Normalize(Selection{LegacyHardware: []HardwareItem{{ID: "modem", Label: "Modem", Price: decimal.NewFromInt(150)}}})
	require.NotNil(t, sel.Modem)
	require.Nil(t, sel.LegacyHardware)

	q := Compose(sel)
	require.Len(t, q.Items, 1)
	require.Equal(t, "1 Modem — $170 / Upfront", q.Items[0].Label)

	kept := Normalize(Selection{LegacyHardware: []HardwareItem{{ID: "ata", Label: "ATA", Price: decimal.NewFromInt(60)}}})
	require.Nil(t, kept.Modem)
	require.Len(t, kept.LegacyHardware, 1)
}

func TestNormalizeTrimsHandsetKeys(t *testing.T) {
	sel := Selection{PBX: &PBXConfiguration{
		SelectedPlan:      PBXPlanPAYG,
		NumUsers:          3,
		HandsetQuantities: map[string]int{"Yealink T31G ": 1, " Yealink T31G": 1, "Yealink W73P": -2},
	}}
	norm := Normalize(sel)
	require.Equal(t, map[string]int{"Yealink T31G": 2, "Yealink W73P": 0}, norm.PBX.HandsetQuantities)
	require.Len(t, sel.PBX.HandsetQuantities, 3)

	q := Compose(norm)
	require.Equal(t, "Yealink T31G x2", q.Items[1].Label)
	require.True(t, q.Total.Equal(decimal.RequireFromString("274.5")))
}
