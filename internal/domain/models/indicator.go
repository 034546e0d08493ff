package models

import (
	"fmt"
	"maps"
	"math"
)

// IndicatorType is a catalogue identifier such as "SMA" or "BOLL".
type IndicatorType string

// IndicatorConfig is one user-configured indicator on a chart.
type IndicatorConfig struct {
	Type    IndicatorType
	Enabled bool
	Params  map[string]float64
	Color   string
}

// Clone returns a deep copy so callers cannot alias Params.
func (c IndicatorConfig) Clone() IndicatorConfig {
	c.Params = maps.Clone(c.Params)
	return c
}

// IndicatorValue is a scalar (one component) or a multi-component value such as bands.
type IndicatorValue []float64

// Scalar builds a one-component value.
func Scalar(v float64) IndicatorValue { return IndicatorValue{v} }

// Component returns the i-th component.
func (v IndicatorValue) Component(i int) (float64, error) {
	if i < 0 || i >= len(v) {
		return 0, fmt.Errorf("%w: component %d of %d", ErrMalformedEvent, i, len(v))
	}
	x := v[i]
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("%w: component %d not finite", ErrMalformedEvent, i)
	}
	return x, nil
}
