package series

import (
	"slices"
	"sort"
	"time"

	"github.com/ecoaily/gridinsight/pkg/grid"
)

// AllowedHours are the aggregation windows offered to users.
var AllowedHours = []int{1, 3, 6, 12, 24}

// Window is an aggregation window ending at Now.
type Window struct {
	Hours int
	Now   time.Time
}

// Cutoff is the inclusive start of the window.
func (w Window) Cutoff() time.Time {
	return w.Now.UTC().Add(-time.Duration(w.Hours) * time.Hour)
}

// Validate rejects windows outside AllowedHours.
func (w Window) Validate() error {
	if !slices.Contains(AllowedHours, w.Hours) {
		return &grid.InvalidWindowError{Hours: w.Hours}
	}
	return nil
}

// Contains reports whether ts lies in [Cutoff, Now], both ends inclusive.
func (w Window) Contains(ts time.Time) bool {
	now := w.Now.UTC()
	return !ts.Before(w.Cutoff()) && !ts.After(now)
}

// Aggregation is the result of summing a breakdown over a window. Sums are
// raw: zero and negative categories are kept.
type Aggregation struct {
	Breakdown map[string]float64 `json:"breakdown"`
	Total     float64            `json:"total"`
	Cutoff    time.Time          `json:"cutoff"`
	Now       time.Time          `json:"now"`
	Records   int                `json:"records"`
}

// Aggregate sums breakdownField per category and totalField across the rows
// that fall inside the window.
//
// Rows with a missing or unparseable timestamp are skipped. Null category
// values and a null total count as zero. A breakdown of the wrong JSON type
// is a MalformedRecordError.
func Aggregate(rows []grid.Row, w Window, breakdownField, totalField string) (Aggregation, error) {
	if err := w.Validate(); err != nil {
		return Aggregation{}, err
	}

	agg := Aggregation{
		Breakdown: make(map[string]float64),
		Cutoff:    w.Cutoff(),
		Now:       w.Now.UTC(),
	}

	for i, r := range rows {
		rec, ok, err := grid.ParseBreakdown(i, r, breakdownField, totalField)
		if err != nil {
			return Aggregation{}, err
		}
		if !ok || !w.Contains(rec.Timestamp) {
			continue
		}

		for category, v := range rec.Breakdown {
			var add float64
			if v != nil {
				add = *v
			}
			agg.Breakdown[category] += add
		}
		if rec.Total != nil {
			agg.Total += *rec.Total
		}
		agg.Records++
	}

	return agg, nil
}

// Contributor is one presentation-ready slice of an aggregation.
type Contributor struct {
	Category string  `json:"category"`
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Share    float64 `json:"share"`
}

// Contributors prepares an aggregation for display: negative sums are
// clamped to zero, zero sums are dropped, labels come from format (nil means
// grid.FormatLabel), and the result is ordered by value, largest first.
//
// An aggregation whose total is zero has nothing to show and yields an empty
// slice, whatever its categories hold.
func Contributors(agg Aggregation, format grid.LabelFormatter) []Contributor {
	if format == nil {
		format = grid.FormatLabel
	}

	out := make([]Contributor, 0, len(agg.Breakdown))
	if agg.Total == 0 {
		return out
	}
	var sum float64
	for category, v := range agg.Breakdown {
		v = max(v, 0)
		if v == 0 {
			continue
		}
		sum += v
		out = append(out, Contributor{Category: category, Label: format(category), Value: v})
	}

	for i := range out {
		out[i].Share = out[i].Value / sum
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Category < out[j].Category
	})
	return out
}
