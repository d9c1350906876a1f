package grid

import (
	"fmt"
	"strings"
	"time"
)

// Flow selects one of the power breakdown series of a power-breakdown payload.
type Flow string

const (
	FlowProduction  Flow = "production"
	FlowConsumption Flow = "consumption"
	FlowImport      Flow = "import"
	FlowExport      Flow = "export"
)

// Flows lists every supported flow in display order.
var Flows = []Flow{FlowProduction, FlowConsumption, FlowImport, FlowExport}

// ParseFlow accepts a flow name, case-insensitively.
func ParseFlow(s string) (Flow, error) {
	f := Flow(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Flows {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown flow %q (must be production, consumption, import, or export)", s)
}

// BreakdownField is the upstream field holding the per-category mapping,
// e.g. "powerProductionBreakdown".
func (f Flow) BreakdownField() string {
	return "power" + f.title() + "Breakdown"
}

// TotalField is the upstream scalar total, e.g. "powerProductionTotal".
func (f Flow) TotalField() string {
	return "power" + f.title() + "Total"
}

func (f Flow) title() string {
	if f == "" {
		return ""
	}
	return strings.ToUpper(string(f[:1])) + string(f[1:])
}

// BreakdownRecord is a timestamped mapping of category to contribution.
// Nil entries and a nil Total represent upstream nulls.
type BreakdownRecord struct {
	Timestamp time.Time
	Breakdown map[string]*float64
	Total     *float64
}

// ParseBreakdown converts row index i into a BreakdownRecord. ok is false when
// the row has no usable timestamp; such rows are skipped by callers. A
// breakdown that is not an object, or a non-numeric value inside it, is a
// MalformedRecordError.
func ParseBreakdown(i int, r Row, breakdownField, totalField string) (rec BreakdownRecord, ok bool, err error) {
	ts, ok := r.Timestamp()
	if !ok {
		return BreakdownRecord{}, false, nil
	}

	rec = BreakdownRecord{Timestamp: ts, Breakdown: map[string]*float64{}}

	if raw, present := r[breakdownField]; present && raw != nil {
		obj, isObj := raw.(map[string]any)
		if !isObj {
			return BreakdownRecord{}, false, &MalformedRecordError{Index: i, Field: breakdownField, Reason: fmt.Sprintf("expected object, got %T", raw)}
		}
		for category, v := range obj {
			if v == nil {
				rec.Breakdown[category] = nil
				continue
			}
			f, isNum := toFloat(v)
			if !isNum {
				return BreakdownRecord{}, false, &MalformedRecordError{Index: i, Field: breakdownField + "." + category, Reason: fmt.Sprintf("expected number, got %T", v)}
			}
			rec.Breakdown[category] = &f
		}
	}

	total, valid, err := r.Float(totalField)
	if err != nil {
		return BreakdownRecord{}, false, &MalformedRecordError{Index: i, Field: totalField, Reason: err.Error()}
	}
	if valid {
		rec.Total = &total
	}

	return rec, true, nil
}
