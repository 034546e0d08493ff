package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"LiveChart/internal/domain/catalogue"
	"LiveChart/internal/domain/models"
	drepo "LiveChart/internal/domain/repository"
	"LiveChart/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultSeedLimit   = 500
	defaultSeedTimeout = 10 * time.Second
	defaultRetryDelay  = 2 * time.Second
)

// ChartOption configures a Chart.
type ChartOption func(*Chart)

// WithLogger sets the chart logger.
func WithLogger(l *logger.Logger) ChartOption {
	return func(c *Chart) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m drepo.Metrics) ChartOption {
	return func(c *Chart) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCatalogue overrides the indicator catalogue.
func WithCatalogue(cat *catalogue.Catalogue) ChartOption {
	return func(c *Chart) {
		if cat != nil {
			c.cat = cat
		}
	}
}

// WithSeedSource seeds every activated session with up to limit candles from src.
func WithSeedSource(src drepo.SeedSource, limit int, timeout time.Duration) ChartOption {
	return func(c *Chart) {
		c.seedSrc = src
		if limit > 0 {
			c.seedLimit = limit
		}
		if timeout > 0 {
			c.seedTimeout = timeout
		}
	}
}

// WithRetryDelay sets the pause between failed reconnect attempts.
func WithRetryDelay(d time.Duration) ChartOption {
	return func(c *Chart) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// ChartStatus is a point-in-time summary of a chart.
type ChartStatus struct {
	ID               string `json:"id"`
	Symbol           string `json:"symbol"`
	Timeframe        string `json:"timeframe"`
	Live             bool   `json:"live"`
	NeedsResubscribe bool   `json:"needsResubscribe"`
	HistoryLen       int    `json:"historyLen"`
	Forming          bool   `json:"forming"`
	Overlays         int    `json:"overlays"`
	Indicators       int    `json:"indicators"`
	Markers          int    `json:"markers"`
}

// Chart drives one live chart: it feeds transport events through the series reducer and the
// overlay manager and pushes the result to the rendering surface. Every state transition
// happens under mu.
type Chart struct {
	id        string
	transport drepo.StreamTransport
	surface   drepo.Surface
	cat       *catalogue.Catalogue
	metrics   drepo.Metrics
	log       *logger.Logger

	seedSrc     drepo.SeedSource
	seedLimit   int
	seedTimeout time.Duration
	retryDelay  time.Duration

	mu        sync.Mutex
	subs      *SubscriptionManager
	overlays  *OverlayManager
	series    SeriesState
	positions []models.Position
	markers   []models.PositionMarker
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChart creates a chart bound to transport and surface. No session is active until
// Start or SetSession.
func NewChart(transport drepo.StreamTransport, surface drepo.Surface, opts ...ChartOption) *Chart {
	c := &Chart{
		id:          uuid.NewString(),
		transport:   transport,
		surface:     surface,
		cat:         catalogue.Default(),
		metrics:     nopMetrics{},
		log:         logger.Nop(),
		seedLimit:   defaultSeedLimit,
		seedTimeout: defaultSeedTimeout,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logger.String("chart", c.id))
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.subs = NewSubscriptionManager(transport, c.log)
	c.overlays = NewOverlayManager(surface, c.cat, c.log)
	return c
}

func (c *Chart) ID() string { return c.id }

// Start connects the transport, activates the initial session and begins consuming events
// until ctx is cancelled or the chart is closed.
func (c *Chart) Start(ctx context.Context, initial models.ChartSession) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	context.AfterFunc(ctx, c.cancel)

	c.mu.Lock()
	c.subs.SetLive(true)
	c.metrics.SetLive(true)
	c.mu.Unlock()

	if err := c.SetSession(ctx, initial); err != nil {
		return err
	}

	evCh, errCh := c.transport.Read(c.ctx)
	c.wg.Add(1)
	go c.consume(evCh, errCh)
	return nil
}

func (c *Chart) consume(evCh <-chan models.Event, errCh <-chan error) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err == nil {
				continue
			}
			if !ok {
				err = errors.New("stream closed")
			}
			if evCh, errCh, ok = c.recover(err); !ok {
				return
			}
		case ev, ok := <-evCh:
			if !ok {
				var recovered bool
				if evCh, errCh, recovered = c.recover(errors.New("stream closed")); !recovered {
					return
				}
				continue
			}
			_ = c.HandleEvent(ev)
		}
	}
}

// recover marks the chart not live, waits for the transport to reconnect, resubscribes the
// active session and opens a new read. It returns false when the chart is shutting down.
func (c *Chart) recover(cause error) (<-chan models.Event, <-chan error, bool) {
	c.log.Warn("stream interrupted", logger.Error(cause))
	c.metrics.RecordError("stream")
	c.mu.Lock()
	c.subs.SetLive(false)
	c.metrics.SetLive(false)
	c.mu.Unlock()

	for {
		if c.ctx.Err() != nil {
			return nil, nil, false
		}
		err := c.transport.Reconnect(c.ctx)
		if err == nil {
			break
		}
		c.log.Warn("reconnect failed", logger.Error(err))
		select {
		case <-c.ctx.Done():
			return nil, nil, false
		case <-time.After(c.retryDelay):
		}
	}

	c.mu.Lock()
	c.subs.SetLive(true)
	c.metrics.SetLive(true)
	if err := c.subs.Resubscribe(c.ctx); err != nil {
		c.log.Warn("resubscribe failed", logger.Error(err))
	}
	c.mu.Unlock()

	evCh, errCh := c.transport.Read(c.ctx)
	c.log.Info("stream resumed")
	return evCh, errCh, true
}

// HandleEvent applies one inbound event. Stale, out-of-order, malformed and orphaned events
// are dropped and reported through the returned error; none of them affect the chart.
func (c *Chart) HandleEvent(ev models.Event) error {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return models.ErrChartClosed
	}
	if ev == nil {
		return c.drop("unknown", fmt.Errorf("%w: nil event", models.ErrMalformedEvent))
	}
	kind := string(ev.Kind())
	if !c.subs.Accepts(ev.Session()) {
		return c.drop(kind, fmt.Errorf("%w: %s", models.ErrStaleEvent, ev.Session()))
	}

	if iu, ok := ev.(models.IndicatorUpdateEvent); ok {
		plotted, err := c.overlays.RouteIndicatorValue(iu.Type, iu.Value, iu.Timestamp)
		if err != nil {
			return c.drop(kind, err)
		}
		if !plotted {
			c.metrics.RecordEvent(kind, "discarded")
			return nil
		}
		c.metrics.RecordEvent(kind, "applied")
		c.metrics.RecordLatency("indicator_update", time.Since(start).Seconds())
		return nil
	}

	next, change, err := ReduceSeries(c.series, ev)
	if err != nil {
		return c.drop(kind, err)
	}
	c.series = next
	c.render(change)
	if change.Kind == ChangeBar {
		c.metrics.RecordLastPrice(c.series.Session.Symbol, change.Bar.Close)
	}
	c.metrics.RecordEvent(kind, "applied")
	c.metrics.RecordLatency(kind, time.Since(start).Seconds())
	return nil
}

// drop logs and counts a rejected event; callers hold mu.
func (c *Chart) drop(kind string, err error) error {
	switch {
	case errors.Is(err, models.ErrStaleEvent):
		c.log.Debug("stale event dropped", logger.String("kind", kind), logger.Error(err))
		c.metrics.RecordEvent(kind, "stale")
	case errors.Is(err, models.ErrOutOfOrder):
		c.log.Debug("out of order event dropped", logger.String("kind", kind), logger.Error(err))
		c.metrics.RecordEvent(kind, "out_of_order")
	default:
		c.log.Warn("malformed event dropped", logger.String("kind", kind), logger.Error(err))
		c.metrics.RecordEvent(kind, "malformed")
		c.metrics.RecordError("malformed")
	}
	return err
}

func (c *Chart) render(change SeriesChange) {
	switch change.Kind {
	case ChangeReset:
		c.surface.SetBars(c.series.Session, c.series.Series())
	case ChangeBar:
		c.surface.UpdateBar(change.Bar)
	}
}

// SetSession switches the chart to s. History, forming candle and overlays of the previous
// session are cleared before the call returns, so late events of that session are no-ops.
// Setting the active session again does nothing.
func (c *Chart) SetSession(ctx context.Context, s models.ChartSession) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return models.ErrChartClosed
	}
	if c.subs.Active() == s {
		return nil
	}
	prev := c.subs.Active()
	if err := c.subs.SetSession(ctx, s); err != nil {
		return err
	}
	c.series = NewSeriesState(s)
	c.surface.SetBars(s, nil)
	c.overlays.Rebuild()
	c.metrics.SetOverlays(c.overlays.Count())
	c.renderMarkers()
	c.log.Info("session activated", logger.String("session", s.Key()), logger.String("previous", prev.Key()))
	c.seed(s)
	return nil
}

// seed loads candles for s in the background; callers hold mu.
func (c *Chart) seed(s models.ChartSession) {
	if c.seedSrc == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.seedTimeout)
		defer cancel()
		start := time.Now()
		candles, err := c.seedSrc.GetCandles(ctx, s, c.seedLimit)
		if err != nil {
			c.log.Warn("seed failed", logger.String("session", s.Key()), logger.Error(err))
			c.metrics.RecordError("seed")
			return
		}
		c.metrics.RecordLatency("seed", time.Since(start).Seconds())
		c.applySeed(s, candles)
	}()
}

// applySeed installs seed candles unless the session changed or the stream already delivered
// data for it.
func (c *Chart) applySeed(s models.ChartSession, candles []models.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.subs.Accepts(s) {
		c.log.Debug("seed for inactive session dropped", logger.String("session", s.Key()))
		return
	}
	if len(c.series.History) > 0 || c.series.Forming != nil {
		c.log.Debug("seed skipped, stream data present", logger.String("session", s.Key()))
		return
	}
	next, change, err := ReduceSeries(c.series, models.HistoricalEvent{For: s, Candles: candles})
	if err != nil {
		c.drop("seed", err)
		return
	}
	c.series = next
	c.render(change)
	c.log.Debug("seeded", logger.String("session", s.Key()), logger.Int("candles", len(next.History)))
}

// SetIndicators replaces the indicator configs and reconciles overlays.
func (c *Chart) SetIndicators(configs []models.IndicatorConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return models.ErrChartClosed
	}
	return c.setIndicators(configs)
}

func (c *Chart) setIndicators(configs []models.IndicatorConfig) error {
	if err := c.overlays.SetIndicators(configs); err != nil {
		return err
	}
	c.metrics.SetOverlays(c.overlays.Count())
	return nil
}

// AddIndicator appends a catalogue-default config for t.
func (c *Chart) AddIndicator(t models.IndicatorType) (models.IndicatorConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return models.IndicatorConfig{}, models.ErrChartClosed
	}
	if _, ok := c.overlays.Config(t); ok {
		return models.IndicatorConfig{}, fmt.Errorf("%w: %s", models.ErrDuplicateType, t)
	}
	cfg, err := c.cat.NewConfig(t)
	if err != nil {
		return models.IndicatorConfig{}, err
	}
	if err := c.setIndicators(append(c.overlays.Configs(), cfg)); err != nil {
		return models.IndicatorConfig{}, err
	}
	return cfg, nil
}

// UpdateIndicator edits params, color or the enabled flag of t. Nil arguments are left as is.
func (c *Chart) UpdateIndicator(t models.IndicatorType, params map[string]float64, color *string, enabled *bool) (models.IndicatorConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return models.IndicatorConfig{}, models.ErrChartClosed
	}
	configs := c.overlays.Configs()
	i := slices.IndexFunc(configs, func(cfg models.IndicatorConfig) bool { return cfg.Type == t })
	if i < 0 {
		return models.IndicatorConfig{}, fmt.Errorf("%w: %s", models.ErrIndicatorNotFound, t)
	}
	cfg, err := c.cat.Merge(configs[i], params, color, enabled)
	if err != nil {
		return models.IndicatorConfig{}, err
	}
	configs[i] = cfg
	if err := c.setIndicators(configs); err != nil {
		return models.IndicatorConfig{}, err
	}
	return cfg, nil
}

// RemoveIndicator deletes the config of t and its overlay.
func (c *Chart) RemoveIndicator(t models.IndicatorType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return models.ErrChartClosed
	}
	configs := c.overlays.Configs()
	n := len(configs)
	configs = slices.DeleteFunc(configs, func(cfg models.IndicatorConfig) bool { return cfg.Type == t })
	if len(configs) == n {
		return fmt.Errorf("%w: %s", models.ErrIndicatorNotFound, t)
	}
	return c.setIndicators(configs)
}

// Indicators returns the current configs.
func (c *Chart) Indicators() []models.IndicatorConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlays.Configs()
}

// SetPositions replaces the open positions and re-projects markers for the active symbol.
func (c *Chart) SetPositions(positions []models.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.positions = slices.Clone(positions)
	c.renderMarkers()
}

// renderMarkers projects markers and pushes them; callers hold mu.
func (c *Chart) renderMarkers() {
	c.markers = ProjectMarkers(c.positions, c.subs.Active().Symbol)
	if err := c.surface.SetMarkers(c.markers); err != nil {
		c.log.Warn("set markers failed", logger.Int("markers", len(c.markers)), logger.Error(err))
		c.metrics.RecordError("surface")
	}
}

// Session returns the active session.
func (c *Chart) Session() models.ChartSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs.Active()
}

// Series returns the derived visual series of the active session.
func (c *Chart) Series() []models.Candle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.series.Series()
}

// Markers returns the currently projected position markers.
func (c *Chart) Markers() []models.PositionMarker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.markers)
}

// IsLive mirrors transport connectivity as last observed.
func (c *Chart) IsLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs.IsLive()
}

func (c *Chart) Status() ChartStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.subs.Active()
	return ChartStatus{
		ID:               c.id,
		Symbol:           s.Symbol,
		Timeframe:        string(s.Timeframe),
		Live:             c.subs.IsLive(),
		NeedsResubscribe: c.subs.NeedsResubscribe(),
		HistoryLen:       len(c.series.History),
		Forming:          c.series.Forming != nil,
		Overlays:         c.overlays.Count(),
		Indicators:       len(c.overlays.configs),
		Markers:          len(c.markers),
	}
}

// Close unsubscribes the active session, tears down overlays and stops background work.
// The transport itself is left open; it may be shared.
func (c *Chart) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.subs.Close(ctx)
	c.overlays.TeardownAll()
	c.metrics.SetOverlays(0)
	c.series = SeriesState{}
	c.mu.Unlock()

	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string, string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) SetOverlays(int) {}
func (nopMetrics) SetLive(bool) {}
