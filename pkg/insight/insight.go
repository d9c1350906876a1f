package insight

import (
	"context"
	"errors"
	"time"

	"github.com/ecoaily/gridinsight/pkg/advice"
	"github.com/ecoaily/gridinsight/pkg/classify"
	"github.com/ecoaily/gridinsight/pkg/grid"
	"github.com/ecoaily/gridinsight/pkg/policy"
	"github.com/ecoaily/gridinsight/pkg/series"
)

// Card is one coloured metric card.
type Card struct {
	policy.Bucket
	// Value is the representative value of the bucket's display range.
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Insight is the classified view of a metric for the last and next 24 hours.
type Insight struct {
	Metric      policy.Kind `json:"metric"`
	Zone        string      `json:"zone"`
	Unit        string      `json:"unit"`
	GeneratedAt time.Time   `json:"generated_at"`
	Freshness

	// Samples is how many non-null values fed the current class.
	Samples int  `json:"samples"`
	Current Card `json:"current"`

	Predicted      *Card                   `json:"predicted,omitempty"`
	Recommendation *advice.Recommendation  `json:"recommendation,omitempty"`
	Arbitrage      *advice.ArbitrageResult `json:"arbitrage,omitempty"`

	// PredictionError explains why Predicted is missing.
	PredictionError string `json:"prediction_error,omitempty"`
}

// Insight classifies metric for zone and, when a prediction is possible,
// derives the recommendation and the arbitrage for quantity kWh.
//
// Prediction problems (fewer than 24 samples, classifier unavailable or
// failing) degrade to a current-only insight with PredictionError set. A
// metric absent from the history, an upstream failure without cached copy,
// or an invalid argument are errors.
func (e *Engine) Insight(ctx context.Context, metric string, zone string, quantity float64) (*Insight, error) {
	p, err := policy.Lookup(metric)
	if err != nil {
		return nil, invalid(err)
	}
	if err := advice.ValidateQuantity(quantity); err != nil {
		return nil, invalid(err)
	}

	h, fresh, err := e.history(ctx, p.Dataset, zone)
	if err != nil {
		return nil, err
	}

	values, err := trailingValues(h.Rows, p.Field, classify.WindowSize)
	if err != nil {
		return nil, err
	}

	model, modelErr := e.models.Get(string(p.Kind))

	labeling := thresholdLabeling(p)
	if modelErr == nil {
		labeling = model.Labeling
	}

	currentClass, err := classify.CurrentClass(values, labeling)
	if err != nil {
		return nil, err
	}
	current, err := e.card(p, currentClass)
	if err != nil {
		return nil, err
	}

	out := &Insight{
		Metric:      p.Kind,
		Zone:        zone,
		Unit:        p.Unit,
		GeneratedAt: e.clock().UTC(),
		Freshness:   fresh,
		Samples:     len(values),
		Current:     current,
	}

	predictedClass, err := e.predict(ctx, p, values, model, modelErr)
	if err != nil {
		out.PredictionError = err.Error()
		e.observer.ObserveClasses(string(p.Kind), currentClass, nil)
		return out, nil
	}
	e.observer.ObserveClasses(string(p.Kind), currentClass, &predictedClass)

	predicted, err := e.card(p, predictedClass)
	if err != nil {
		return nil, err
	}
	out.Predicted = &predicted

	rec := advice.Recommend(p, current.Bucket, predicted.Bucket)
	out.Recommendation = &rec

	arb, err := advice.Arbitrage(p, current.Value, predicted.Value, quantity)
	if err != nil {
		return nil, err
	}
	out.Arbitrage = &arb

	return out, nil
}

func (e *Engine) predict(ctx context.Context, p policy.MetricPolicy, values []float64, model *classify.Model, modelErr error) (int, error) {
	if modelErr != nil {
		return 0, modelErr
	}
	if len(values) < classify.WindowSize {
		return 0, &grid.InsufficientDataError{Field: p.Field, Need: classify.WindowSize, Have: len(values)}
	}

	start := time.Now()
	class, err := classify.Predict(ctx, values, model.Main, model.Classifier)
	e.observer.ObserveClassify(string(p.Kind), time.Since(start), err)
	if err != nil {
		e.logger.Warn("prediction failed", "metric", p.Kind, "error", err)
		return 0, err
	}
	return class, nil
}

func (e *Engine) card(p policy.MetricPolicy, class int) (Card, error) {
	b, v, err := p.ClassValue(class)
	if err != nil {
		if errors.Is(err, grid.ErrInvalidRangeFormat) {
			e.logger.Error("labeling table does not match metric policy", "metric", p.Kind, "class", class, "error", err)
		}
		return Card{}, err
	}
	return Card{Bucket: b, Value: v, Color: p.Color(class)}, nil
}

// trailingValues returns up to n of the most recent non-null values of
// field. No values at all is an InsufficientDataError.
func trailingValues(rows []grid.Row, field string, n int) ([]float64, error) {
	values, err := series.LastValues(rows, field, n)
	if err == nil {
		return values, nil
	}

	var ide *grid.InsufficientDataError
	if !errors.As(err, &ide) || ide.Have == 0 {
		return nil, err
	}
	return series.LastValues(rows, field, ide.Have)
}

// thresholdLabeling labels raw values with the policy's own bucket bounds.
// It stands in for the fitted labeling scaler when no artifact is loaded.
func thresholdLabeling(p policy.MetricPolicy) classify.Scaler {
	return classify.ScalerFunc(func(x float64) float64 {
		return float64(p.ClassOf(x))
	})
}
