// Package metrics exposes Prometheus instrumentation for the chart feed.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick results.
const (
	ResultPushed  = "pushed"
	ResultSkipped = "skipped"
	ResultInvalid = "invalid"
	ResultFailed  = "failed"
)

// Metrics holds the feed's collectors.
type Metrics struct {
	registry *prometheus.Registry

	Ticks         *prometheus.CounterVec
	TickDuration  prometheus.Histogram
	SeriesPoints  prometheus.Gauge
	Sentinels     prometheus.Counter
	Reports       *prometheus.CounterVec
	SurfaceErrors *prometheus.CounterVec
	LastPush      prometheus.Gauge
}

// New registers all collectors on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "payoutchart"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_total",
			Help:      "Poll ticks by result",
		}, []string{"result"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one poll tick",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}),
		SeriesPoints: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "series_points",
			Help:      "Points in the last pushed series, sentinel included",
		}),
		Sentinels: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "sentinel_points_total",
			Help:      "Synthetic liveness points appended",
		}),
		Reports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "reports_total",
			Help:      "Error reports by outcome",
		}, []string{"outcome"}),
		SurfaceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "push_errors_total",
			Help:      "Failed pushes by surface",
		}, []string{"surface"}),
		LastPush: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_push_timestamp_seconds",
			Help:      "Unix time of the last successful push",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
