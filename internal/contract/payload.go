package contract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/plan-configurator/internal/pricing"
)

// MaxSlots is the number of data{N} slots the downstream contract form accepts.
const MaxSlots = 10

const overflowHeading = "Other items"

var headings = map[pricing.LineKind]string{
	pricing.KindPlan:       "Internet plan",
	pricing.KindModem:      "Modem",
	pricing.KindHardware:   "Hardware",
	pricing.KindPhone:      "Phone",
	pricing.KindPBXPlan:    "PBX plan",
	pricing.KindPBXAddon:   "PBX add-on",
	pricing.KindPBXHandset: "Handset",
}

// Slot is one flattened line: heading, label, unit price and subtotal.
type Slot struct {
	Heading  string
	Value    string
	Price    string
	Subtotal string
}

// Payload is the flattened contract document sent downstream and archived.
type Payload struct {
	Kind        string
	SubmittedAt time.Time
	Customer    Customer
	Business    *Business
	StartDate   string
	Slots       [MaxSlots]Slot
	Total       decimal.Decimal
}

// BuildPayload flattens a quote into slots in compositor order. When the quote
// has more lines than slots, the last slot aggregates the remainder so that the
// slot subtotals always add up to the total.
func BuildPayload(kind string, in SubmitInput, q pricing.Quote, submittedAt time.Time) Payload {
	p := Payload{
		Kind:        kind,
		SubmittedAt: submittedAt.UTC(),
		Customer:    in.Customer,
		Business:    in.Business,
		StartDate:   in.StartDate,
		Total:       q.Total,
	}
	items := q.Items
	direct := len(items)
	if direct > MaxSlots {
		direct = MaxSlots - 1
	}
	for i := 0; i < direct; i++ {
		p.Slots[i] = slotFor(items[i])
	}
	if rest := items[direct:]; len(rest) > 0 {
		p.Slots[MaxSlots-1] = overflowSlot(rest)
	}
	return p
}

func slotFor(item pricing.LineItem) Slot {
	heading, ok := headings[item.Kind]
	if !ok {
		heading = string(item.Kind)
	}
	return Slot{
		Heading:  heading,
		Value:    item.Label,
		Price:    item.UnitPrice.StringFixed(2),
		Subtotal: item.Subtotal.StringFixed(2),
	}
}

func overflowSlot(items []pricing.LineItem) Slot {
	labels := make([]string, 0, len(items))
	sum := decimal.Zero
	for _, item := range items {
		labels = append(labels, item.Label)
		sum = sum.Add(item.Subtotal)
	}
	return Slot{
		Heading:  overflowHeading,
		Value:    strings.Join(labels, ", "),
		Price:    sum.StringFixed(2),
		Subtotal: sum.StringFixed(2),
	}
}

// MarshalJSON renders the flat key layout. Unused slots are empty strings.
func (p Payload) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"kind":        p.Kind,
		"submittedAt": p.SubmittedAt.Format(time.RFC3339),
		"firstName":   p.Customer.FirstName,
		"lastName":    p.Customer.LastName,
		"email":       p.Customer.Email,
		"phone":       p.Customer.Phone,
		"address":     p.Customer.Address,
		"pricing":     map[string]string{"total": p.Total.StringFixed(2)},
	}
	if p.Customer.DateOfBirth != "" {
		m["dateOfBirth"] = p.Customer.DateOfBirth
	}
	if p.StartDate != "" {
		m["startDate"] = p.StartDate
	}
	if b := p.Business; b != nil {
		m["companyName"] = b.CompanyName
		m["abn"] = b.ABN
		if b.ContactRole != "" {
			m["contactRole"] = b.ContactRole
		}
	}
	for i, s := range p.Slots {
		n := i + 1
		m[fmt.Sprintf("data%d", n)] = s.Heading
		m[fmt.Sprintf("data%dValue", n)] = s.Value
		m[fmt.Sprintf("data%dPrice", n)] = s.Price
		m[fmt.Sprintf("data%dSubtotal", n)] = s.Subtotal
	}
	return json.Marshal(m)
}
