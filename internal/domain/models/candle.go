package models

import (
	"fmt"
	"math"
	"time"
)

// Candle represents one OHLCV bucket. OpenTime is the bucket start and the ordering key.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Validate reports a wrapped ErrMalformedEvent when the candle cannot be plotted.
func (c Candle) Validate() error {
	if c.OpenTime.IsZero() {
		return fmt.Errorf("%w: candle open time missing", ErrMalformedEvent)
	}
	fields := [...]struct {
		name string
		v    float64
	}{{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}, {"volume", c.Volume}}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: candle %s not finite", ErrMalformedEvent, f.name)
		}
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume", ErrMalformedEvent)
	}
	if c.High < c.Low {
		return fmt.Errorf("%w: high %v below low %v", ErrMalformedEvent, c.High, c.Low)
	}
	return nil
}
