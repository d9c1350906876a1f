package classify

import (
	"fmt"
	"math"
)

// Scaler is a pre-fitted one dimensional transform.
type Scaler interface {
	Transform(x float64) float64
}

// ScalerFunc adapts a function to Scaler.
type ScalerFunc func(x float64) float64

func (f ScalerFunc) Transform(x float64) float64 { return f(x) }

// MinMaxScaler computes x*Scale + Min, the fitted form of a min-max scaler.
type MinMaxScaler struct {
	Scale float64 `json:"scale"`
	Min   float64 `json:"min"`
}

func (s MinMaxScaler) Transform(x float64) float64 {
	return x*s.Scale + s.Min
}

// StandardScaler computes the z-score (x-Mean)/Std. A zero Std only centres.
type StandardScaler struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func (s StandardScaler) Transform(x float64) float64 {
	if s.Std < 1e-10 {
		return x - s.Mean
	}
	return (x - s.Mean) / s.Std
}

// ScalerSpec is the serialised form of a scaler inside an artifact.
type ScalerSpec struct {
	Kind  string  `json:"kind"`
	Scale float64 `json:"scale,omitempty"`
	Min   float64 `json:"min,omitempty"`
	Mean  float64 `json:"mean,omitempty"`
	Std   float64 `json:"std,omitempty"`
}

// Build returns the Scaler described by s.
func (s ScalerSpec) Build() (Scaler, error) {
	switch s.Kind {
	case "minmax":
		if s.Scale == 0 || math.IsNaN(s.Scale) {
			return nil, fmt.Errorf("minmax scaler: scale must be non-zero")
		}
		return MinMaxScaler{Scale: s.Scale, Min: s.Min}, nil
	case "standard":
		if s.Std < 0 || math.IsNaN(s.Std) {
			return nil, fmt.Errorf("standard scaler: std must be non-negative")
		}
		return StandardScaler{Mean: s.Mean, Std: s.Std}, nil
	case "":
		return nil, fmt.Errorf("scaler kind is required")
	default:
		return nil, fmt.Errorf("unknown scaler kind %q (must be minmax or standard)", s.Kind)
	}
}
