// Package stream implements the market-data transports a chart subscribes through and the
// JSON wire codec they share.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"LiveChart/internal/domain/models"
	"LiveChart/pkg/util"
)

// Intent types sent upstream.
const (
	IntentSubscribe   = "subscribe"
	IntentUnsubscribe = "unsubscribe"
)

// Intent is the outbound subscribe/unsubscribe frame.
type Intent struct {
	Type      string `json:"type"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// NewIntent builds an intent for s.
func NewIntent(kind string, s models.ChartSession) Intent {
	return Intent{Type: kind, Symbol: s.Symbol, Timeframe: string(s.Timeframe)}
}

// wireCandle uses pointers so missing fields can be told apart from zeros.
type wireCandle struct {
	T *float64 `json:"t"`
	O *float64 `json:"o"`
	H *float64 `json:"h"`
	L *float64 `json:"l"`
	C *float64 `json:"c"`
	V *float64 `json:"v"`
}

type wireEvent struct {
	Type          string          `json:"type"`
	Symbol        string          `json:"symbol"`
	Timeframe     string          `json:"timeframe"`
	Candles       []wireCandle    `json:"candles"`
	Candle        *wireCandle     `json:"candle"`
	IndicatorType string          `json:"indicatorType"`
	Value         json.RawMessage `json:"value"`
	Timestamp     *float64        `json:"timestamp"`
}

// DecodeEvent parses one inbound frame. Any structural problem yields a wrapped
// models.ErrMalformedEvent.
func DecodeEvent(b []byte) (models.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedEvent, err)
	}
	s, err := models.NewSession(w.Symbol, models.Timeframe(w.Timeframe))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedEvent, err)
	}

	switch models.EventKind(w.Type) {
	case models.KindHistorical:
		if w.Candles == nil {
			return nil, fmt.Errorf("%w: historical without candles", models.ErrMalformedEvent)
		}
		candles := make([]models.Candle, 0, len(w.Candles))
		for i, wc := range w.Candles {
			c, err := wc.candle()
			if err != nil {
				return nil, fmt.Errorf("candle %d: %w", i, err)
			}
			candles = append(candles, c)
		}
		return models.HistoricalEvent{For: s, Candles: candles}, nil

	case models.KindTickUpdate, models.KindCandleComplete:
		if w.Candle == nil {
			return nil, fmt.Errorf("%w: %s without candle", models.ErrMalformedEvent, w.Type)
		}
		c, err := w.Candle.candle()
		if err != nil {
			return nil, err
		}
		if w.Type == string(models.KindTickUpdate) {
			return models.TickUpdateEvent{For: s, Candle: c}, nil
		}
		return models.CandleCompleteEvent{For: s, Candle: c}, nil

	case models.KindIndicatorUpdate:
		if w.IndicatorType == "" {
			return nil, fmt.Errorf("%w: indicator type missing", models.ErrMalformedEvent)
		}
		ts, err := timestamp(w.Timestamp)
		if err != nil {
			return nil, err
		}
		v, err := indicatorValue(w.Value)
		if err != nil {
			return nil, err
		}
		return models.IndicatorUpdateEvent{For: s, Type: models.IndicatorType(w.IndicatorType), Value: v, Timestamp: ts}, nil
	}

	return nil, fmt.Errorf("%w: unknown event type %q", models.ErrMalformedEvent, w.Type)
}

func (w wireCandle) candle() (models.Candle, error) {
	fields := [...]struct {
		name string
		v    *float64
	}{{"o", w.O}, {"h", w.H}, {"l", w.L}, {"c", w.C}, {"v", w.V}}
	for _, f := range fields {
		if f.v == nil {
			return models.Candle{}, fmt.Errorf("%w: candle field %s missing", models.ErrMalformedEvent, f.name)
		}
	}
	t, err := timestamp(w.T)
	if err != nil {
		return models.Candle{}, err
	}
	c := models.Candle{OpenTime: t, Open: *w.O, High: *w.H, Low: *w.L, Close: *w.C, Volume: *w.V}
	return c, c.Validate()
}

// timestamp accepts unix seconds or milliseconds.
func timestamp(v *float64) (time.Time, error) {
	if v == nil {
		return time.Time{}, fmt.Errorf("%w: timestamp missing", models.ErrMalformedEvent)
	}
	if *v <= 0 || *v != math.Trunc(*v) || *v > math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %v", models.ErrMalformedEvent, *v)
	}
	return util.UnixAuto(int64(*v)), nil
}

func indicatorValue(raw json.RawMessage) (models.IndicatorValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: indicator value missing", models.ErrMalformedEvent)
	}
	if raw[0] == '[' {
		var vs []float64
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, fmt.Errorf("%w: indicator value: %v", models.ErrMalformedEvent, err)
		}
		if len(vs) == 0 {
			return nil, fmt.Errorf("%w: indicator value empty", models.ErrMalformedEvent)
		}
		return vs, nil
	}
	var x float64
	if err := json.Unmarshal(raw, &x); err != nil {
		return nil, fmt.Errorf("%w: indicator value: %v", models.ErrMalformedEvent, err)
	}
	return models.Scalar(x), nil
}
