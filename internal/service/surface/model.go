// Package surface keeps an in-memory rendering surface for one chart: bars, indicator lines
// and position markers. Every mutation bumps a version and is published to listeners so
// browser clients can mirror the model.
package surface

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
)

// ErrLineExists is returned by AddLine when the key is already drawn.
var ErrLineExists = errors.New("line already exists")

// Bar is the wire form of a candle; Time is unix seconds.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Point is one indicator value; Time is unix seconds.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Marker is the wire form of a position marker.
type Marker struct {
	Time  int64   `json:"time"`
	Side  string  `json:"side"`
	Price float64 `json:"price"`
}

// LineSnapshot is a drawn indicator line.
type LineSnapshot struct {
	Key    string  `json:"key"`
	Color  string  `json:"color"`
	Points []Point `json:"points"`
}

// Snapshot is the full visual model at one version.
type Snapshot struct {
	Version   uint64         `json:"version"`
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Bars      []Bar          `json:"bars"`
	Lines     []LineSnapshot `json:"lines"`
	Markers   []Marker       `json:"markers"`
}

// Update types published to listeners.
const (
	UpdateReset      = "reset"
	UpdateBar        = "bar"
	UpdateLineAdd    = "line_add"
	UpdateLineRemove = "line_remove"
	UpdateLinePoint  = "line_point"
	UpdateLineColor  = "line_color"
	UpdateMarkers    = "markers"
)

// Update is an incremental change of the model.
type Update struct {
	Type      string   `json:"type"`
	Version   uint64   `json:"version"`
	Symbol    string   `json:"symbol,omitempty"`
	Timeframe string   `json:"timeframe,omitempty"`
	Bars      []Bar    `json:"bars,omitempty"`
	Bar       *Bar     `json:"bar,omitempty"`
	Line      string   `json:"line,omitempty"`
	Color     string   `json:"color,omitempty"`
	Point     *Point   `json:"point,omitempty"`
	Markers   []Marker `json:"markers,omitempty"`
}

// Listener receives updates in version order. Publish must not block.
type Listener interface {
	Publish(u Update)
}

type line struct {
	m      *Model
	key    string
	color  string
	points []Point
	gone   bool
}

// Model implements repository.Surface.
type Model struct {
	mu        sync.RWMutex
	version   uint64
	session   models.ChartSession
	bars      []Bar
	lines     map[string]*line
	order     []string
	markers   []Marker
	listeners []Listener
}

var _ drepo.Surface = (*Model)(nil)

func NewModel() *Model {
	return &Model{lines: make(map[string]*line)}
}

// Subscribe adds a listener for subsequent updates.
func (m *Model) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// publish bumps the version and fans u out; callers hold mu.
func (m *Model) publish(u Update) {
	m.version++
	u.Version = m.version
	for _, l := range m.listeners {
		l.Publish(u)
	}
}

func toBar(c models.Candle) Bar {
	return Bar{Time: c.OpenTime.Unix(), Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
}

func (m *Model) SetBars(s models.ChartSession, bars []models.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.bars = make([]Bar, len(bars))
	for i, c := range bars {
		m.bars[i] = toBar(c)
	}
	m.publish(Update{
		Type:      UpdateReset,
		Symbol:    s.Symbol,
		Timeframe: string(s.Timeframe),
		Bars:      append([]Bar(nil), m.bars...),
	})
}

// UpdateBar replaces the last bar when it shares the open time, otherwise appends.
func (m *Model) UpdateBar(c models.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := toBar(c)
	if n := len(m.bars); n > 0 && m.bars[n-1].Time == b.Time {
		m.bars[n-1] = b
	} else {
		m.bars = append(m.bars, b)
	}
	m.publish(Update{Type: UpdateBar, Bar: &b})
}

func (m *Model) AddLine(key, color string) (drepo.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lines[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrLineExists, key)
	}
	l := &line{m: m, key: key, color: color}
	m.lines[key] = l
	m.order = append(m.order, key)
	m.publish(Update{Type: UpdateLineAdd, Line: key, Color: color})
	return l, nil
}

// RemoveLine drops l. Handles from another model or already removed are ignored.
func (m *Model) RemoveLine(h drepo.Line) {
	l, ok := h.(*line)
	if !ok || l.m != m {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.gone || m.lines[l.key] != l {
		return
	}
	l.gone = true
	delete(m.lines, l.key)
	for i, k := range m.order {
		if k == l.key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.publish(Update{Type: UpdateLineRemove, Line: l.key})
}

// SetMarkers replaces the markers. Markers without a time are rejected as a whole.
func (m *Model) SetMarkers(in []models.PositionMarker) error {
	out := make([]Marker, 0, len(in))
	for i, pm := range in {
		if pm.Time.IsZero() {
			return fmt.Errorf("marker %d: missing time", i)
		}
		out = append(out, Marker{Time: pm.Time.Unix(), Side: string(pm.Side), Price: pm.Price})
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = out
	m.publish(Update{Type: UpdateMarkers, Markers: append([]Marker(nil), out...)})
	return nil
}

// Update upserts the point at t keeping points ordered by time.
func (l *line) Update(t time.Time, value float64) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.gone {
		return
	}
	p := Point{Time: t.Unix(), Value: value}
	i := sort.Search(len(l.points), func(i int) bool { return l.points[i].Time >= p.Time })
	switch {
	case i < len(l.points) && l.points[i].Time == p.Time:
		l.points[i] = p
	case i == len(l.points):
		l.points = append(l.points, p)
	default:
		l.points = append(l.points, Point{})
		copy(l.points[i+1:], l.points[i:])
		l.points[i] = p
	}
	m.publish(Update{Type: UpdateLinePoint, Line: l.key, Point: &p})
}

func (l *line) SetColor(color string) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.gone || l.color == color {
		return
	}
	l.color = color
	m.publish(Update{Type: UpdateLineColor, Line: l.key, Color: color})
}

// Snapshot copies the current model.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		Version:   m.version,
		Symbol:    m.session.Symbol,
		Timeframe: string(m.session.Timeframe),
		Bars:      append([]Bar{}, m.bars...),
		Lines:     make([]LineSnapshot, 0, len(m.order)),
		Markers:   append([]Marker{}, m.markers...),
	}
	for _, k := range m.order {
		l := m.lines[k]
		s.Lines = append(s.Lines, LineSnapshot{Key: k, Color: l.color, Points: append([]Point{}, l.points...)})
	}
	return s
}

// Version returns the current model version.
func (m *Model) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}
