// Package grid holds the data model shared by the Eco AI.ly grid packages:
// upstream history rows, time-series points, breakdown records, and the
// error taxonomy used across the pipeline.
//
// History payloads come from the ElectricityMaps history endpoints:
//
//	{"zone": "PT", "history": [{"datetime": "2025-03-01T10:00:00.000Z", "carbonIntensity": 120, ...}]}
//
// Rows are kept as decoded JSON objects because the set of fields, and the
// keys inside breakdown objects, are not fixed by the upstream schema.
package grid

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Upstream field names.
const (
	FieldDatetime            = "datetime"
	FieldCarbonIntensity     = "carbonIntensity"
	FieldRenewablePercentage = "renewablePercentage"
	FieldFossilFreePercent   = "fossilFreePercentage"
)

// Row is one decoded history entry. Values are float64, string, bool, nil,
// map[string]any or []any, as produced by a JSON decoder.
type Row map[string]any

// History is a parsed history payload.
type History struct {
	Zone string
	Rows []Row
}

// Point is a single time-series observation. Valid is false when the
// upstream value was null.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Valid     bool      `json:"valid"`
}

// ParseHistory decodes a history payload. The "history" member must be an
// array of objects; anything else is rejected as malformed.
func ParseHistory(body []byte) (*History, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("history payload is not valid JSON")
	}

	history := gjson.GetBytes(body, "history")
	if !history.Exists() {
		return nil, errors.New("history payload has no \"history\" member")
	}
	if !history.IsArray() {
		return nil, fmt.Errorf("history payload: \"history\" is %s, want array", history.Type)
	}

	items := history.Array()
	rows := make([]Row, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, &MalformedRecordError{Index: i, Field: "", Reason: "entry is not an object"}
		}
		obj, ok := item.Value().(map[string]any)
		if !ok {
			return nil, &MalformedRecordError{Index: i, Field: "", Reason: "entry is not an object"}
		}
		rows = append(rows, Row(obj))
	}

	return &History{
		Zone: gjson.GetBytes(body, "zone").String(),
		Rows: rows,
	}, nil
}

// Timestamp parses the row's datetime. ok is false when the field is
// missing, not a string, or not RFC 3339.
func (r Row) Timestamp() (time.Time, bool) {
	raw, ok := r[FieldDatetime].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// Has reports whether the row carries the field, even with a null value.
func (r Row) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Float reads a numeric field. valid is false for a missing or null value.
// Any non-numeric value is an error.
func (r Row) Float(field string) (value float64, valid bool, err error) {
	raw, ok := r[field]
	if !ok || raw == nil {
		return 0, false, nil
	}
	v, ok := toFloat(raw)
	if !ok {
		return 0, false, fmt.Errorf("field %q: unexpected %T value", field, raw)
	}
	return v, true, nil
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// HasField reports whether any row in the history carries the field.
func HasField(rows []Row, field string) bool {
	for _, r := range rows {
		if r.Has(field) {
			return true
		}
	}
	return false
}
