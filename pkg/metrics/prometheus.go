package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsTotal *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
	overlays    prometheus.Gauge
	live        prometheus.Gauge
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		eventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechart_events_total",
				Help: "Stream events handled, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechart_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "livechart_last_price",
				Help: "Close of the last applied bar for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livechart_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		overlays: f.NewGauge(prometheus.GaugeOpts{
			Name: "livechart_overlays",
			Help: "Live indicator overlays",
		}),
		live: f.NewGauge(prometheus.GaugeOpts{
			Name: "livechart_stream_live",
			Help: "1 when the stream transport is connected",
		}),
	}
}

// RecordEvent counts one handled event.
func (r *Recorder) RecordEvent(kind, outcome string) {
	r.eventsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetOverlays(n int) { r.overlays.Set(float64(n)) }

func (r *Recorder) SetLive(live bool) {
	if live {
		r.live.Set(1)
		return
	}
	r.live.Set(0)
}
