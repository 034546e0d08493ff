package models

import "time"

// EventKind names the inbound event variants as they appear on the wire.
type EventKind string

const (
	KindHistorical      EventKind = "historical"
	KindTickUpdate      EventKind = "tick_update"
	KindCandleComplete  EventKind = "candle_complete"
	KindIndicatorUpdate EventKind = "indicator_update"
)

// Event is the sealed sum of stream events. Every variant carries the session it belongs to.
type Event interface {
	Kind() EventKind
	Session() ChartSession
	isEvent()
}

// HistoricalEvent replaces the session's candle history.
type HistoricalEvent struct {
	For     ChartSession
	Candles []Candle
}

// TickUpdateEvent carries a full snapshot of the forming bucket.
type TickUpdateEvent struct {
	For    ChartSession
	Candle Candle
}

// CandleCompleteEvent carries the final snapshot of a bucket.
type CandleCompleteEvent struct {
	For    ChartSession
	Candle Candle
}

// IndicatorUpdateEvent carries one indicator value at a point in time.
type IndicatorUpdateEvent struct {
	For       ChartSession
	Type      IndicatorType
	Value     IndicatorValue
	Timestamp time.Time
}

func (e HistoricalEvent) Kind() EventKind      { return KindHistorical }
func (e TickUpdateEvent) Kind() EventKind      { return KindTickUpdate }
func (e CandleCompleteEvent) Kind() EventKind  { return KindCandleComplete }
func (e IndicatorUpdateEvent) Kind() EventKind { return KindIndicatorUpdate }

func (e HistoricalEvent) Session() ChartSession      { return e.For }
func (e TickUpdateEvent) Session() ChartSession      { return e.For }
func (e CandleCompleteEvent) Session() ChartSession  { return e.For }
func (e IndicatorUpdateEvent) Session() ChartSession { return e.For }

func (HistoricalEvent) isEvent()      {}
func (TickUpdateEvent) isEvent()      {}
func (CandleCompleteEvent) isEvent()  {}
func (IndicatorUpdateEvent) isEvent() {}
