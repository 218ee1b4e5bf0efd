package pricing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestModemBundlePriceTable(t *testing.T) {
	cases := []struct {
		tier BundleTier
		term PaymentTerm
		want int64
	}{
		{TierModemOnly, TermOutright, 170},
		{TierModemOnly, Term12, 15},
		{TierModemOnly, Term24, 8},
		{TierOneExtender, TermOutright, 235},
		{TierOneExtender, Term12, 20},
		{TierOneExtender, Term24, 10},
		{TierTwoExtenders, TermOutright, 325},
		{TierTwoExtenders, Term12, 25},
		{TierTwoExtenders, Term24, 15},
	}
	for _, tc := range cases {
		got, err := ModemBundlePrice(tc.tier, tc.term)
		require.NoError(t, err)
		require.Truef(t, decimal.NewFromInt(tc.want).Equal(got), "tier %d term %s: got %s", tc.tier, tc.term, got)
	}
}

func TestModemBundlePriceRejectsUnknown(t *testing.T) {
	_, err := ModemBundlePrice(BundleTier(3), TermOutright)
	require.ErrorIs(t, err, ErrUnknownTier)

	_, err = ModemBundlePrice(TierModemOnly, PaymentTerm("36"))
	require.ErrorIs(t, err, ErrUnknownTerm)
}

func TestModemBundleLabel(t *testing.T) {
	label, err := ModemBundleLabel(TierOneExtender, TermOutright)
	require.NoError(t, err)
	require.Equal(t, "1 Modem + 1 Extender — $235 / Upfront", label)

	label, err = ModemBundleLabel(TierTwoExtenders, Term24)
	require.NoError(t, err)
	require.Equal(t, "1 Modem + 2 Extenders — $15/mth over 24 months", label)
}

func TestCatalogFallbacksAreZero(t *testing.T) {
	require.True(t, PBXPlanUnitPrice("Hosted GOLD").IsZero())
	require.True(t, PBXHandsetUnitPrice("Rotary Dial").IsZero())
	require.True(t, PhoneServiceUnitPrice("satellite").IsZero())

	require.True(t, decimal.RequireFromString("33").Equal(PBXPlanUnitPrice(PBXPlanUnlimited)))
	require.True(t, decimal.RequireFromString("5.5").Equal(PBXPlanUnitPrice(PBXPlanPAYG)))
	require.True(t, decimal.NewFromInt(10).Equal(PhoneServiceUnitPrice("pack")))
	require.True(t, PhoneServiceUnitPrice("payg").IsZero())
}

func TestHandsetModelsReturnsCopy(t *testing.T) {
	models := HandsetModels()
	require.Len(t, models, 6)
	models[0].UnitPrice = decimal.NewFromInt(1)
	require.True(t, decimal.NewFromInt(129).Equal(PBXHandsetUnitPrice("Yealink T31G")))
	require.Equal(t, []string{"Yealink T31G", "Yealink T43U", "Yealink T54W"}, LimitedHandsetModels())
}

func TestPaymentTermAcceptsNumbers(t *testing.T) {
	var sel ModemBundleSelection
	require.NoError(t, json.Unmarshal([]byte(`{"bundleTier":1,"paymentTerm":12}`), &sel))
	require.Equal(t, Term12, sel.PaymentTerm)

	require.NoError(t, json.Unmarshal([]byte(`{"bundleTier":0,"paymentTerm":"Outright"}`), &sel))
	require.Equal(t, TermOutright, sel.PaymentTerm)
	require.True(t, sel.PaymentTerm.Valid())
	require.Equal(t, 0, sel.PaymentTerm.Months())
}
