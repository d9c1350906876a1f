// Package advice turns a pair of buckets (last 24 hours, next 24 hours) into
// user-facing guidance: when to consume energy and how much shifting the
// consumption is worth.
package advice

import (
	"fmt"
	"math"

	"github.com/ecoaily/gridinsight/pkg/policy"
)

// Severity classifies a message for presentation.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const (
	MsgUseNow      = "Use energy now!"
	MsgUseLater    = "Use energy later!"
	MsgUseAnytime  = "Use energy whenever!"
	MsgBadTiming   = "Bad timing!"
	MsgBetterWait  = "Better wait!"
	MsgNoArbitrage = "Currently there are no visible upside on programming your energy consumption."
)

// Recommendation is the outcome of comparing the current and predicted buckets.
type Recommendation struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Trend    Trend    `json:"trend"`
}

// Recommend compares current with predicted under p's polarity. The rules
// are evaluated in order, "good" meaning strictly on the sustainable side of
// policy.Pivot:
//
//  1. predicted worse than current, current good: use now
//  2. predicted better than current, predicted good: use later
//  3. equal and current good, or predicted good: use whenever
//  4. neither class past the pivot on the unsustainable side: bad timing
//  5. otherwise: better wait
func Recommend(p policy.MetricPolicy, current, predicted policy.Bucket) Recommendation {
	c, n := current.Class, predicted.Class
	r := Recommendation{Trend: TrendOf(p, c, n)}

	switch {
	case p.Better(c, n) && p.Good(c):
		r.Severity, r.Message = SeveritySuccess, MsgUseNow
	case p.Better(n, c) && p.Good(n):
		r.Severity, r.Message = SeverityWarning, MsgUseLater
	case (n == c && p.Good(c)) || p.Good(n):
		r.Severity, r.Message = SeveritySuccess, MsgUseAnytime
	case p.Tolerable(n) && p.Tolerable(c):
		r.Severity, r.Message = SeverityError, MsgBadTiming
	default:
		r.Severity, r.Message = SeverityError, MsgBetterWait
	}
	return r
}

// Direction is the movement of the class index from current to predicted.
type Direction string

const (
	Rising  Direction = "rising"
	Falling Direction = "falling"
	Steady  Direction = "steady"
)

const (
	colorImproving = "#28a745"
	colorWorsening = "#dc3545"
	colorSteady    = "#6c757d"
)

// Trend drives the arrow shown between the current and predicted cards.
type Trend struct {
	Direction Direction `json:"direction"`
	Arrow     string    `json:"arrow"`
	Color     string    `json:"color"`
}

// TrendOf returns the trend from class c to class n. The arrow follows the
// class index; the colour follows p's polarity.
func TrendOf(p policy.MetricPolicy, c, n int) Trend {
	switch {
	case n > c:
		t := Trend{Direction: Rising, Arrow: "↑", Color: colorWorsening}
		if p.Better(n, c) {
			t.Color = colorImproving
		}
		return t
	case n < c:
		t := Trend{Direction: Falling, Arrow: "↓", Color: colorWorsening}
		if p.Better(n, c) {
			t.Color = colorImproving
		}
		return t
	default:
		return Trend{Direction: Steady, Arrow: "→", Color: colorSteady}
	}
}

// Period is the 24 hour window an arbitrage favours.
type Period string

const (
	PeriodNow     Period = "now"
	PeriodNext    Period = "next"
	PeriodNeither Period = "neither"
)

// Quantity bounds in kWh.
const (
	MinQuantity     = 0.0
	MaxQuantity     = 10000.0
	DefaultQuantity = 100.0
)

// QuantityOutOfRangeError rejects quantities outside [MinQuantity, MaxQuantity].
type QuantityOutOfRangeError struct {
	Quantity float64
}

func (e *QuantityOutOfRangeError) Error() string {
	return fmt.Sprintf("quantity %g kWh out of range [%g, %g]", e.Quantity, MinQuantity, MaxQuantity)
}

// ValidateQuantity rejects NaN and quantities outside [MinQuantity, MaxQuantity].
func ValidateQuantity(quantity float64) error {
	if math.IsNaN(quantity) || quantity < MinQuantity || quantity > MaxQuantity {
		return &QuantityOutOfRangeError{Quantity: quantity}
	}
	return nil
}

// ArbitrageResult estimates the benefit of moving consumption between the
// current and next window.
type ArbitrageResult struct {
	// UnitDelta is |now-next| in the metric's unit.
	UnitDelta float64 `json:"unit_delta"`
	// Delta is UnitDelta scaled by Quantity.
	Delta         float64  `json:"delta"`
	Quantity      float64  `json:"quantity"`
	Unit          string   `json:"unit"`
	FavoredPeriod Period   `json:"favored_period"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
}

// Arbitrage compares the representative values of the current and next
// window. The favoured period is the one p considers more sustainable;
// equal values favour neither and are not an error.
func Arbitrage(p policy.MetricPolicy, now, next, quantity float64) (ArbitrageResult, error) {
	if err := ValidateQuantity(quantity); err != nil {
		return ArbitrageResult{}, err
	}

	unit := math.Abs(now - next)
	res := ArbitrageResult{
		UnitDelta:     unit,
		Delta:         unit * quantity,
		Quantity:      quantity,
		Unit:          p.Unit,
		FavoredPeriod: PeriodNeither,
		Severity:      SeverityWarning,
		Message:       MsgNoArbitrage,
	}

	switch {
	case p.BetterValue(now, next):
		res.FavoredPeriod = PeriodNow
	case p.BetterValue(next, now):
		res.FavoredPeriod = PeriodNext
	default:
		return res, nil
	}

	res.Message = arbitrageMessage(p.Kind, res.FavoredPeriod)
	if res.Delta > 0 {
		res.Severity = SeveritySuccess
	}
	return res, nil
}

func arbitrageMessage(kind policy.Kind, favored Period) string {
	switch kind {
	case policy.KindRenewablePercentage:
		if favored == PeriodNow {
			return "Focus your energy spending on the now, because for the next 24 hours the renewable percentage will be lower!"
		}
		return "Focus your energy spending on the next 24 hours, because the renewable percentage will be higher!"
	default:
		if favored == PeriodNow {
			return "Focus your energy spending on the now, because for the next 24 hours the carbon intensity will be higher!"
		}
		return "Focus your energy spending on the future because for the next 24 hours the carbon intensity will be lower!"
	}
}
