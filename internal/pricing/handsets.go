package pricing

import (
	"fmt"
	"strings"
)

// PBXConfiguration is the hosted business phone system addon.
type PBXConfiguration struct {
	SelectedPlan         string         `json:"selectedPlan"`
	NumUsers             int            `json:"numUsers"`
	IVRCount             int            `json:"ivrCount"`
	QueueCount           int            `json:"queueCount"`
	CallRecordingEnabled bool           `json:"callRecordingEnabled"`
	CallRecordingQty     int            `json:"callRecordingQty"`
	HandsetQuantities    map[string]int `json:"handsetQuantities"`
}

// Clone returns a copy that shares no map with the receiver.
func (c PBXConfiguration) Clone() PBXConfiguration {
	out := c
	out.HandsetQuantities = make(map[string]int, len(c.HandsetQuantities))
	for model, qty := range c.HandsetQuantities {
		out.HandsetQuantities[model] = qty
	}
	return out
}

// HandsetCap is the maximum combined quantity of limited handset models.
func (c PBXConfiguration) HandsetCap() int {
	return clampQuantity(c.NumUsers) + clampQuantity(c.QueueCount)
}

// LimitedHandsetsInUse sums the quantities of the limited models, optionally skipping one.
func (c PBXConfiguration) LimitedHandsetsInUse(except string) int {
	used := 0
	for _, h := range handsetTable {
		if !h.Limited || h.Model == except {
			continue
		}
		used += clampQuantity(c.HandsetQuantities[h.Model])
	}
	return used
}

// CapWarning describes a clamped handset write.
type CapWarning struct {
	Model     string `json:"model"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
	Cap       int    `json:"cap"`
}

// Message renders the warning for display.
func (w *CapWarning) Message() string {
	return fmt.Sprintf(
		"%s limited to %d: the combined quantity of %s cannot exceed %d (users + call queues)",
		w.Model, w.Applied, strings.Join(LimitedHandsetModels(), ", "), w.Cap,
	)
}

// CapReport is the current state of the limited handset cap.
type CapReport struct {
	Used int  `json:"used"`
	Cap  int  `json:"cap"`
	Over bool `json:"over"`
}

// Message renders an over-cap notice.
func (r CapReport) Message() string {
	return fmt.Sprintf(
		"limited handsets (%s) total %d which exceeds the current cap of %d (users + call queues)",
		strings.Join(LimitedHandsetModels(), ", "), r.Used, r.Cap,
	)
}

// CapStatus reports whether a saved configuration sits above its cap. Lowering
// users or queues does not rewrite handsets, so this state is reachable.
func CapStatus(cfg PBXConfiguration) CapReport {
	used := cfg.LimitedHandsetsInUse("")
	limit := cfg.HandsetCap()
	return CapReport{Used: used, Cap: limit, Over: used > limit}
}

// SetHandsetQuantity applies a requested quantity for one model. Limited models
// are clamped to what the cap leaves after the other limited models, even when
// the saved quantity already sits above it. The returned warning is nil when
// the request was applied unchanged.
func SetHandsetQuantity(cfg PBXConfiguration, model string, requested int) (PBXConfiguration, *CapWarning) {
	out := cfg.Clone()
	model = strings.TrimSpace(model)
	qty := clampQuantity(requested)

	var warning *CapWarning
	if IsLimitedHandset(model) {
		remaining := max(out.HandsetCap()-out.LimitedHandsetsInUse(model), 0)
		if qty > remaining {
			warning = &CapWarning{Model: model, Requested: requested, Applied: remaining, Cap: out.HandsetCap()}
			qty = remaining
		}
	}

	if qty == 0 {
		delete(out.HandsetQuantities, model)
	} else {
		out.HandsetQuantities[model] = qty
	}
	return out, warning
}

// AdjustHandset applies a +/- step to one model with the same cap rules.
func AdjustHandset(cfg PBXConfiguration, model string, delta int) (PBXConfiguration, *CapWarning) {
	current := cfg.HandsetQuantities[strings.TrimSpace(model)]
	return SetHandsetQuantity(cfg, model, current+delta)
}

// ApplyHandsets writes quantities on top of cfg as one edit: every model in
// quantities is cleared first, then the requested values are applied in catalog
// order so the cap is measured against the target state rather than the old
// one. Unknown models are ignored.
func ApplyHandsets(cfg PBXConfiguration, quantities map[string]int) (PBXConfiguration, []*CapWarning) {
	out := cfg.Clone()
	requested := normalizeHandsets(quantities)
	for model := range requested {
		delete(out.HandsetQuantities, model)
	}
	var warnings []*CapWarning
	for _, h := range handsetTable {
		qty, ok := requested[h.Model]
		if !ok {
			continue
		}
		var w *CapWarning
		out, w = SetHandsetQuantity(out, h.Model, qty)
		if w != nil {
			warnings = append(warnings, w)
		}
	}
	return out, warnings
}

// EnforceHandsetCap rebuilds the handset quantities of cfg from scratch under
// the cap. It is used for configurations that arrive whole, such as an inline
// contract selection.
func EnforceHandsetCap(cfg PBXConfiguration) (PBXConfiguration, []*CapWarning) {
	requested := cfg.HandsetQuantities
	cfg.HandsetQuantities = nil
	return ApplyHandsets(cfg, requested)
}

// normalizeHandsets trims model names and merges keys that collapse onto the
// same model. Non-positive quantities are kept so callers can clear a model.
func normalizeHandsets(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for model, qty := range in {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		out[model] = clampQuantity(out[model] + clampQuantity(qty))
	}
	return out
}
