// Package policy describes how each grid metric is bucketed, labelled and
// compared. A MetricPolicy carries everything that differs between carbon
// intensity and renewable percentage so the rest of the pipeline can stay
// generic.
package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ecoaily/gridinsight/pkg/grid"
)

// Kind names a classified metric.
type Kind string

const (
	KindCarbonIntensity     Kind = "carbon-intensity"
	KindRenewablePercentage Kind = "renewable-percentage"
)

// Polarity says which end of the class scale is the sustainable one.
type Polarity int

const (
	LowerIsBetter Polarity = iota
	HigherIsBetter
)

func (p Polarity) String() string {
	if p == HigherIsBetter {
		return "higher_is_better"
	}
	return "lower_is_better"
}

// NumClasses is the number of buckets every metric is split into.
const NumClasses = 6

// Pivot is the class the recommendation rules compare against.
const Pivot = 3

// MetricPolicy parametrises bucketing and recommendation for one metric.
type MetricPolicy struct {
	Kind Kind
	// Field is the history field holding the metric.
	Field string
	// Dataset is the upstream history dataset the field is published in.
	Dataset string
	Unit    string

	// Thresholds are the five inner bucket boundaries in ascending order.
	Thresholds [NumClasses - 1]float64
	Labels     [NumClasses]string
	Polarity   Polarity
	// Suffix is appended to every boundary in display ranges ("%").
	Suffix string
	// OpenUpper maps the last boundary B to the representative value of "> B".
	OpenUpper func(b float64) float64
}

// CarbonIntensity is the policy for gCO2eq/kWh. Lower classes are cleaner.
var CarbonIntensity = MetricPolicy{
	Kind:       KindCarbonIntensity,
	Field:      grid.FieldCarbonIntensity,
	Dataset:    "carbon-intensity",
	Unit:       "gCO₂eq/kWh",
	Thresholds: [NumClasses - 1]float64{118, 202, 286, 369, 452},
	Labels:     [NumClasses]string{"The Best!", "Good!", "Ok!", "Bad!", "Very Bad!", "The Worst!"},
	Polarity:   LowerIsBetter,
	OpenUpper:  func(b float64) float64 { return b * 1.05 },
}

// RenewablePercentage is the policy for the renewable share. Higher classes
// are greener and the scale tops out at 100%.
var RenewablePercentage = MetricPolicy{
	Kind:       KindRenewablePercentage,
	Field:      grid.FieldRenewablePercentage,
	Dataset:    "power-breakdown",
	Unit:       "%",
	Thresholds: [NumClasses - 1]float64{16, 32, 48, 64, 80},
	Labels:     [NumClasses]string{"The Worst!", "Very Bad!", "Bad!", "Ok!", "Good!", "The Best!"},
	Polarity:   HigherIsBetter,
	Suffix:     "%",
	OpenUpper:  func(b float64) float64 { return (b + 100) / 2 },
}

var policies = map[Kind]MetricPolicy{
	KindCarbonIntensity:     CarbonIntensity,
	KindRenewablePercentage: RenewablePercentage,
}

// Kinds lists the classified metrics in display order.
var Kinds = []Kind{KindCarbonIntensity, KindRenewablePercentage}

// Lookup returns the policy for kind. Lookup is lenient about case and
// accepts the camelCase field names as aliases.
func Lookup(kind string) (MetricPolicy, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch k {
	case strings.ToLower(grid.FieldCarbonIntensity):
		k = string(KindCarbonIntensity)
	case strings.ToLower(grid.FieldRenewablePercentage):
		k = string(KindRenewablePercentage)
	}
	p, ok := policies[Kind(k)]
	if !ok {
		return MetricPolicy{}, fmt.Errorf("unknown metric %q (must be %s or %s)", kind, KindCarbonIntensity, KindRenewablePercentage)
	}
	return p, nil
}

// InvalidClassError is returned for a class outside [0, 5].
type InvalidClassError struct {
	Class int
}

func (e *InvalidClassError) Error() string {
	return fmt.Sprintf("class %d out of range [0, %d]", e.Class, NumClasses-1)
}

// Bucket is the display form of a class.
type Bucket struct {
	Class        int    `json:"class"`
	DisplayRange string `json:"display_range"`
	TierLabel    string `json:"tier_label"`
}

// Label maps class to its bucket.
func (p MetricPolicy) Label(class int) (Bucket, error) {
	if class < 0 || class >= NumClasses {
		return Bucket{}, &InvalidClassError{Class: class}
	}
	return Bucket{
		Class:        class,
		DisplayRange: p.DisplayRange(class),
		TierLabel:    p.Labels[class],
	}, nil
}

// DisplayRange renders the boundaries of class, e.g. "118 - 202", "< 16%"
// or "> 452". class must be valid.
func (p MetricPolicy) DisplayRange(class int) string {
	switch {
	case class <= 0:
		return "< " + p.bound(0)
	case class >= NumClasses-1:
		return "> " + p.bound(NumClasses-2)
	default:
		return p.bound(class-1) + " - " + p.bound(class)
	}
}

func (p MetricPolicy) bound(i int) string {
	return strconv.FormatFloat(p.Thresholds[i], 'f', -1, 64) + p.Suffix
}

// RepresentativeValue converts a display range into one number usable in
// arithmetic: the midpoint of "A - B", half of "< B", and OpenUpper(B) for
// "> B". A "%" suffix on the bounds is ignored. Any other shape is an
// InvalidRangeFormatError.
func (p MetricPolicy) RepresentativeValue(displayRange string) (float64, error) {
	tokens := strings.Split(displayRange, " ")

	switch {
	case len(tokens) == 3 && tokens[1] == "-":
		a, errA := parseBound(tokens[0])
		b, errB := parseBound(tokens[2])
		if errA != nil || errB != nil {
			return 0, &grid.InvalidRangeFormatError{Range: displayRange}
		}
		return (a + b) / 2, nil

	case len(tokens) == 2 && (tokens[0] == "<" || tokens[0] == ">"):
		b, err := parseBound(tokens[1])
		if err != nil {
			return 0, &grid.InvalidRangeFormatError{Range: displayRange}
		}
		if tokens[0] == "<" {
			return b / 2, nil
		}
		return p.OpenUpper(b), nil
	}

	return 0, &grid.InvalidRangeFormatError{Range: displayRange}
}

func parseBound(tok string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
}

// ClassValue is Label followed by RepresentativeValue.
func (p MetricPolicy) ClassValue(class int) (Bucket, float64, error) {
	b, err := p.Label(class)
	if err != nil {
		return Bucket{}, 0, err
	}
	v, err := p.RepresentativeValue(b.DisplayRange)
	if err != nil {
		return Bucket{}, 0, err
	}
	return b, v, nil
}

// ClassOf returns the bucket whose display range holds the raw value v.
// Boundaries belong to the upper bucket.
func (p MetricPolicy) ClassOf(v float64) int {
	class := 0
	for _, t := range p.Thresholds {
		if v >= t {
			class++
		}
	}
	return class
}

// Better reports whether class a is more sustainable than class b.
func (p MetricPolicy) Better(a, b int) bool {
	if p.Polarity == HigherIsBetter {
		return a > b
	}
	return a < b
}

// Good reports whether class is strictly on the sustainable side of Pivot.
func (p MetricPolicy) Good(class int) bool {
	return p.Better(class, Pivot)
}

// Tolerable reports whether class is Good or exactly at Pivot.
func (p MetricPolicy) Tolerable(class int) bool {
	return class == Pivot || p.Good(class)
}

// BetterValue reports whether raw value a is more sustainable than b.
func (p MetricPolicy) BetterValue(a, b float64) bool {
	if p.Polarity == HigherIsBetter {
		return a > b
	}
	return a < b
}

// Color is the card background for class: green for the best class, red
// for the worst, interpolated linearly in between. Out of range classes
// are clamped.
func (p MetricPolicy) Color(class int) string {
	class = min(max(class, 0), NumClasses-1)
	bad := float64(class) / float64(NumClasses-1)
	if p.Polarity == HigherIsBetter {
		bad = 1 - bad
	}
	red := int(255 * bad)
	green := int(255 * (1 - bad))
	return fmt.Sprintf("#%02X%02X00", red, green)
}
