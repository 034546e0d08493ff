package models

import "time"

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// Timeframes lists supported timeframes from finest to coarsest.
func Timeframes() []Timeframe {
	return []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d}
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// Duration returns the bucket width, zero for unknown timeframes.
func (tf Timeframe) Duration() time.Duration { return timeframeDurations[tf] }

// BucketStart aligns t to the start of its bucket (UTC).
func (tf Timeframe) BucketStart(t time.Time) time.Time {
	d := tf.Duration()
	if d <= 0 {
		return t.UTC()
	}
	return t.UTC().Truncate(d)
}
