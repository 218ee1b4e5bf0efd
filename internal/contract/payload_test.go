package contract_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/plan-configurator/internal/contract"
	"github.com/noah-isme/plan-configurator/internal/pricing"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func fullBusinessSelection() pricing.Selection {
	return pricing.Selection{
		Plan:  &pricing.PlanSelection{Title: "Business 250", ActualPrice: dec("129")},
		Modem: &pricing.ModemBundleSelection{BundleTier: pricing.TierTwoExtenders, PaymentTerm: pricing.Term24},
		Phone: &pricing.PhoneServiceSelection{PlanID: "pack"},
		PBX: &pricing.PBXConfiguration{
			SelectedPlan:         "Hosted UNLIMITED",
			NumUsers:             4,
			IVRCount:             1,
			QueueCount:           2,
			CallRecordingEnabled: true,
			CallRecordingQty:     4,
			HandsetQuantities: map[string]int{
				"Yealink T31G":  1,
				"Yealink T43U":  1,
				"Yealink T54W":  1,
				"Yealink W73P":  2,
				"Yealink CP925": 1,
				"Yealink BH72":  3,
			},
		},
	}
}

func TestBuildPayloadAggregatesOverflowIntoLastSlot(t *testing.T) {
	q := pricing.Compose(fullBusinessSelection())
	require.Len(t, q.Items, 13)

	p := contract.BuildPayload(contract.KindBusiness, contract.SubmitInput{}, q, time.Now())
	for i := 0; i < contract.MaxSlots-1; i++ {
		require.Equal(t, q.Items[i].Label, p.Slots[i].Value)
	}
	last := p.Slots[contract.MaxSlots-1]
	require.Equal(t, "Other items", last.Heading)
	require.Equal(t, "Yealink T54W x1, Yealink W73P x2, Yealink CP925 x1, Yealink BH72 x3", last.Value)

	sum := decimal.Zero
	for _, s := range p.Slots {
		sum = sum.Add(decimal.RequireFromString(s.Subtotal))
	}
	require.True(t, q.Total.Equal(sum), "slots %s total %s", sum, q.Total)
}

func TestPayloadJSONLayout(t *testing.T) {
	sel := pricing.Selection{
		Plan:  &pricing.PlanSelection{Title: "Fibre 100", Subtitle: "Fast 100", ActualPrice: dec("99.99"), DiscountPrice: dec("79.99")},
		Phone: &pricing.PhoneServiceSelection{PlanID: "payg"},
	}
	in := contract.SubmitInput{
		Customer: contract.Customer{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Phone:     "+61412345678",
			Address:   "1 George St, Sydney NSW 2000",
		},
		StartDate: "2026-11-01",
	}
	submitted := time.Date(2026, 10, 17, 1, 2, 3, 0, time.UTC)
	raw, err := json.Marshal(contract.BuildPayload(contract.KindResidential, in, pricing.Compose(sel), submitted))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Equal(t, "Internet plan", m["data1"])
	require.Equal(t, "Fast 100", m["data1Value"])
	require.Equal(t, "79.99", m["data1Price"])
	require.Equal(t, "79.99", m["data1Subtotal"])
	require.Equal(t, "Phone", m["data2"])
	require.Equal(t, "Pay as you go calls", m["data2Value"])
	require.Equal(t, "0.00", m["data2Price"])
	for n := 3; n <= contract.MaxSlots; n++ {
		require.Equal(t, "", m[fmt.Sprintf("data%d", n)])
		require.Equal(t, "", m[fmt.Sprintf("data%dSubtotal", n)])
	}
	require.NotContains(t, m, "data11")
	require.Equal(t, map[string]any{"total": "79.99"}, m["pricing"])
	require.Equal(t, "2026-10-17T01:02:03Z", m["submittedAt"])
	require.Equal(t, "2026-11-01", m["startDate"])
	require.NotContains(t, m, "companyName")

	again, err := json.Marshal(contract.BuildPayload(contract.KindResidential, in, pricing.Compose(sel), submitted))
	require.NoError(t, err)
	require.Equal(t, string(raw), string(again))
}
