package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
)

func ts(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func bar(sec int64, close float64) models.Candle {
	return models.Candle{OpenTime: ts(sec), Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1}
}

func mustSession(t *testing.T, symbol string, tf models.Timeframe) models.ChartSession {
	t.Helper()
	s, err := models.NewSession(symbol, tf)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return s
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	intents    []string
	subErr     error
	reconnects int
	reads      int
	evCh       chan models.Event
	errCh      chan error
}

func newFakeTransport(connected bool) *fakeTransport {
	return &fakeTransport{connected: connected}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, s models.ChartSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.intents = append(f.intents, "subscribe:"+s.Key())
	return nil
}

func (f *fakeTransport) Unsubscribe(ctx context.Context, s models.ChartSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, "unsubscribe:"+s.Key())
	return nil
}

func (f *fakeTransport) Read(ctx context.Context) (<-chan models.Event, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	f.evCh = make(chan models.Event, 16)
	f.errCh = make(chan error, 1)
	return f.evCh, f.errCh
}

func (f *fakeTransport) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	f.connected = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakeTransport) Intents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.intents...)
}

func (f *fakeTransport) channels() (chan models.Event, chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evCh, f.errCh
}

type fakeLine struct {
	key    string
	color  string
	points map[time.Time]float64
}

func (l *fakeLine) Update(t time.Time, v float64) { l.points[t] = v }
func (l *fakeLine) SetColor(color string)          { l.color = color }

type fakeSurface struct {
	session    models.ChartSession
	bars       []models.Candle
	setBars    int
	lines      map[string]*fakeLine
	added      int
	removed    int
	markers    []models.PositionMarker
	markerErr  error
	addLineErr error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{lines: make(map[string]*fakeLine)}
}

func (s *fakeSurface) SetBars(session models.ChartSession, bars []models.Candle) {
	s.session = session
	s.bars = append([]models.Candle(nil), bars...)
	s.setBars++
}

func (s *fakeSurface) UpdateBar(b models.Candle) {
	if n := len(s.bars); n > 0 && s.bars[n-1].OpenTime.Equal(b.OpenTime) {
		s.bars[n-1] = b
		return
	}
	s.bars = append(s.bars, b)
}

func (s *fakeSurface) AddLine(key, color string) (drepo.Line, error) {
	if s.addLineErr != nil {
		return nil, s.addLineErr
	}
	l := &fakeLine{key: key, color: color, points: make(map[time.Time]float64)}
	s.lines[key] = l
	s.added++
	return l, nil
}

func (s *fakeSurface) RemoveLine(l drepo.Line) {
	fl := l.(*fakeLine)
	delete(s.lines, fl.key)
	s.removed++
}

func (s *fakeSurface) SetMarkers(m []models.PositionMarker) error {
	if s.markerErr != nil {
		return s.markerErr
	}
	s.markers = append([]models.PositionMarker(nil), m...)
	return nil
}

type fakeSeed struct {
	candles []models.Candle
	err     error
	release chan struct{}
}

func (f *fakeSeed) GetCandles(ctx context.Context, s models.ChartSession, limit int) ([]models.Candle, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

var errBoom = errors.New("boom")
