// Package classify wraps the pretrained sequence classifiers that bucket a
// 24 hour window of a metric into one of six classes.
//
// Two classes are derived per metric and they are allowed to disagree:
//
//   - the current class is a per-sample vote: every raw value goes through
//     the labeling scaler, is rounded to the nearest class and the mode wins;
//   - the predicted class is a single inference of the classifier on the
//     whole window after the main scaler.
package classify

import (
	"context"
	"fmt"
	"math"

	"github.com/ecoaily/gridinsight/pkg/grid"
	"github.com/ecoaily/gridinsight/pkg/policy"
)

// WindowSize is the number of hourly samples a classifier consumes.
const WindowSize = 24

// Window is a scaled input sequence, oldest first.
type Window [WindowSize]float64

// Classifier maps a scaled window to a class. Implementations may return
// any integer; callers clip it with Clip.
type Classifier interface {
	Classify(ctx context.Context, w Window) (int, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, w Window) (int, error)

func (f ClassifierFunc) Classify(ctx context.Context, w Window) (int, error) {
	return f(ctx, w)
}

// Clip forces class into [0, 5].
func Clip(class int) int {
	return min(max(class, 0), policy.NumClasses-1)
}

// CurrentClass labels each value independently and returns the most common
// class. Values are rounded half to even after scaling; ties between classes
// resolve to the smallest class.
func CurrentClass(values []float64, labeling Scaler) (int, error) {
	if len(values) == 0 {
		return 0, &grid.InsufficientDataError{Need: 1}
	}

	var votes [policy.NumClasses]int
	for i, v := range values {
		scaled := labeling.Transform(v)
		if math.IsNaN(scaled) || math.IsInf(scaled, 0) {
			return 0, fmt.Errorf("labeling value %d (%g): non-finite result", i, v)
		}
		votes[clipFloat(math.RoundToEven(scaled))]++
	}

	mode := 0
	for c := 1; c < policy.NumClasses; c++ {
		if votes[c] > votes[mode] {
			mode = c
		}
	}
	return mode, nil
}

func clipFloat(x float64) int {
	return int(math.Min(math.Max(x, 0), policy.NumClasses-1))
}

// Predict scales values with main and runs one inference of c over the
// whole window. values must hold exactly WindowSize samples, oldest first.
func Predict(ctx context.Context, values []float64, main Scaler, c Classifier) (int, error) {
	if len(values) != WindowSize {
		return 0, &grid.InsufficientDataError{Need: WindowSize, Have: len(values)}
	}

	var w Window
	for i, v := range values {
		w[i] = main.Transform(v)
	}

	class, err := c.Classify(ctx, w)
	if err != nil {
		return 0, err
	}
	return Clip(class), nil
}

// Argmax returns the index of the largest element, the first one on ties.
func Argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}
