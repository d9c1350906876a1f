// Package series turns raw history rows into ordered time series and
// windowed breakdown aggregates. Everything here is pure: no I/O, no clocks.
// Callers pass "now" explicitly.
package series

import (
	"sort"
	"time"

	"github.com/ecoaily/gridinsight/pkg/grid"
)

// ClassificationLength is the number of trailing samples a classifier window holds.
const ClassificationLength = 24

// Mode selects how Extract trims the sorted series.
type Mode int

const (
	// ModeLastN keeps the final N points.
	ModeLastN Mode = iota
	// ModeTrailingWindow keeps points with timestamp >= Now - Hours.
	ModeTrailingWindow
)

// ExtractOptions configures Extract.
type ExtractOptions struct {
	Mode Mode

	// N is the number of points kept in ModeLastN.
	N int
	// Strict makes ModeLastN fail with InsufficientDataError when fewer than
	// N points exist. The display path leaves it off.
	Strict bool

	// Hours and Now define the trailing window in ModeTrailingWindow.
	Hours int
	Now   time.Time
}

// LastN returns options for the final n points.
func LastN(n int, strict bool) ExtractOptions {
	return ExtractOptions{Mode: ModeLastN, N: n, Strict: strict}
}

// TrailingWindow returns options for the points in [now-hours, ...].
func TrailingWindow(hours int, now time.Time) ExtractOptions {
	return ExtractOptions{Mode: ModeTrailingWindow, Hours: hours, Now: now}
}

// Extract builds the ascending, time-deduplicated series of field.
//
// Rows without a usable timestamp are skipped. Rows that lack the field, or
// carry null, yield points with Valid=false. When rows exist but none of
// them carries field at all, a MissingFieldError is returned.
func Extract(rows []grid.Row, field string, opts ExtractOptions) ([]grid.Point, error) {
	if len(rows) > 0 && !grid.HasField(rows, field) {
		return nil, &grid.MissingFieldError{Field: field}
	}

	points := make([]grid.Point, 0, len(rows))
	for i, r := range rows {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		v, valid, err := r.Float(field)
		if err != nil {
			return nil, &grid.MalformedRecordError{Index: i, Field: field, Reason: err.Error()}
		}
		points = append(points, grid.Point{Timestamp: ts, Value: v, Valid: valid})
	}

	points = sortDedup(points)

	switch opts.Mode {
	case ModeTrailingWindow:
		cutoff := opts.Now.UTC().Add(-time.Duration(opts.Hours) * time.Hour)
		first := sort.Search(len(points), func(i int) bool {
			return !points[i].Timestamp.Before(cutoff)
		})
		return points[first:], nil

	default:
		if opts.N <= 0 {
			return points, nil
		}
		if len(points) < opts.N {
			if opts.Strict {
				return nil, &grid.InsufficientDataError{Field: field, Need: opts.N, Have: len(points)}
			}
			return points, nil
		}
		return points[len(points)-opts.N:], nil
	}
}

// LastValues returns the final n non-null values of field, oldest first.
// This is the classification path: nulls are excluded and fewer than n
// remaining samples is an InsufficientDataError.
func LastValues(rows []grid.Row, field string, n int) ([]float64, error) {
	points, err := Extract(rows, field, ExtractOptions{Mode: ModeLastN})
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Valid {
			values = append(values, p.Value)
		}
	}

	if len(values) < n {
		return nil, &grid.InsufficientDataError{Field: field, Need: n, Have: len(values)}
	}
	return values[len(values)-n:], nil
}

// sortDedup sorts ascending by timestamp and keeps the last occurrence of
// each timestamp in input order.
func sortDedup(points []grid.Point) []grid.Point {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(p.Timestamp) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
