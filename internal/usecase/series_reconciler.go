package usecase

import (
	"fmt"
	"slices"

	"LiveChart/internal/domain/models"
)

// SeriesState is the candle state of one chart session.
// History is strictly increasing by OpenTime. Forming, when set, is never older than the last
// history entry. ReduceSeries never mutates a state it is given.
type SeriesState struct {
	Session models.ChartSession
	History []models.Candle
	Forming *models.Candle
}

// NewSeriesState returns the empty state of a freshly activated session.
func NewSeriesState(s models.ChartSession) SeriesState {
	return SeriesState{Session: s}
}

// ChangeKind tells the renderer how the derived series moved.
type ChangeKind int

const (
	// ChangeNone leaves the rendered series as is.
	ChangeNone ChangeKind = iota
	// ChangeReset requires the whole series to be redrawn.
	ChangeReset
	// ChangeBar updates or appends the last bar only.
	ChangeBar
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeReset:
		return "reset"
	case ChangeBar:
		return "bar"
	default:
		return "none"
	}
}

// SeriesChange describes the visual effect of one transition.
type SeriesChange struct {
	Kind ChangeKind
	Bar  models.Candle
}

// Series derives the visual series: history followed by the forming candle. A forming candle
// sharing the last history OpenTime replaces that bar.
func (s SeriesState) Series() []models.Candle {
	out := make([]models.Candle, len(s.History), len(s.History)+1)
	copy(out, s.History)
	if s.Forming == nil {
		return out
	}
	if n := len(out); n > 0 && out[n-1].OpenTime.Equal(s.Forming.OpenTime) {
		out[n-1] = *s.Forming
		return out
	}
	return append(out, *s.Forming)
}

func (s SeriesState) last() (models.Candle, bool) {
	if len(s.History) == 0 {
		return models.Candle{}, false
	}
	return s.History[len(s.History)-1], true
}

// ReduceSeries applies one event to state. Events of another session return ErrStaleEvent,
// invalid payloads return ErrMalformedEvent and candles older than history return
// ErrOutOfOrder; in all those cases state is returned unchanged. Indicator updates do not
// touch the series.
func ReduceSeries(state SeriesState, ev models.Event) (SeriesState, SeriesChange, error) {
	if ev == nil {
		return state, SeriesChange{}, fmt.Errorf("%w: nil event", models.ErrMalformedEvent)
	}
	if state.Session.IsZero() || ev.Session() != state.Session {
		return state, SeriesChange{}, fmt.Errorf("%w: %s event for %s", models.ErrStaleEvent, ev.Kind(), ev.Session())
	}

	switch e := ev.(type) {
	case models.HistoricalEvent:
		history, err := normalizeHistory(e.Candles)
		if err != nil {
			return state, SeriesChange{}, err
		}
		return SeriesState{Session: state.Session, History: history}, SeriesChange{Kind: ChangeReset}, nil

	case models.TickUpdateEvent:
		c := e.Candle
		if err := c.Validate(); err != nil {
			return state, SeriesChange{}, err
		}
		if last, ok := state.last(); ok && c.OpenTime.Before(last.OpenTime) {
			return state, SeriesChange{}, fmt.Errorf("%w: tick %s before %s", models.ErrOutOfOrder, c.OpenTime, last.OpenTime)
		}
		change := SeriesChange{Kind: ChangeBar, Bar: c}
		if state.Forming != nil && !state.Forming.OpenTime.Equal(c.OpenTime) {
			// previous forming bar vanishes from the series
			change.Kind = ChangeReset
		}
		next := state
		next.Forming = &c
		return next, change, nil

	case models.CandleCompleteEvent:
		c := e.Candle
		if err := c.Validate(); err != nil {
			return state, SeriesChange{}, err
		}
		next := SeriesState{Session: state.Session}
		last, ok := state.last()
		switch {
		case ok && c.OpenTime.Equal(last.OpenTime):
			next.History = slices.Clone(state.History)
			next.History[len(next.History)-1] = c
		case !ok || c.OpenTime.After(last.OpenTime):
			next.History = append(slices.Clip(state.History), c)
		default:
			return state, SeriesChange{}, fmt.Errorf("%w: completed %s before %s", models.ErrOutOfOrder, c.OpenTime, last.OpenTime)
		}
		change := SeriesChange{Kind: ChangeBar, Bar: c}
		if state.Forming != nil && !state.Forming.OpenTime.Equal(c.OpenTime) {
			change.Kind = ChangeReset
		}
		return next, change, nil

	case models.IndicatorUpdateEvent:
		return state, SeriesChange{}, nil
	}

	return state, SeriesChange{}, fmt.Errorf("%w: unknown event kind %q", models.ErrMalformedEvent, ev.Kind())
}

// normalizeHistory sorts by OpenTime and collapses duplicates to the last occurrence.
func normalizeHistory(in []models.Candle) ([]models.Candle, error) {
	for i, c := range in {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
	}
	sorted := slices.Clone(in)
	slices.SortStableFunc(sorted, func(a, b models.Candle) int {
		return a.OpenTime.Compare(b.OpenTime)
	})
	out := make([]models.Candle, 0, len(sorted))
	for _, c := range sorted {
		if n := len(out); n > 0 && out[n-1].OpenTime.Equal(c.OpenTime) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
