// Package metrics exposes the service's Prometheus instrumentation.
// One Metrics value is shared by the engine, the reconciler and the
// feed hub; the REST router mounts Handler at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the service registers
type Metrics struct {
	registry *prometheus.Registry

	// Reconciler
	EventsApplied *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec
	ParkedEdges   prometheus.Gauge
	SnapshotRequests prometheus.Counter

	// Feed transport
	FeedConnects    prometheus.Counter
	FeedDisconnects prometheus.Counter

	// Layout / engine loop
	LayoutSteps   prometheus.Counter
	LayoutAlpha   prometheus.Gauge
	FrameDuration prometheus.Histogram

	// Simulation overlay
	SimulationRequests *prometheus.CounterVec

	// WebSocket hub
	ActiveConnections prometheus.Gauge
	MessagesSent      prometheus.Counter
	MessagesFailed    prometheus.Counter
}

// New creates and registers all collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "reconciler",
			Name:      "events_applied_total",
			Help:      "Feed events applied to the graph model, by event type.",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "reconciler",
			Name:      "events_dropped_total",
			Help:      "Feed events dropped or deferred, by reason.",
		}, []string{"reason"}),
		ParkedEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dealgraph",
			Subsystem: "reconciler",
			Name:      "parked_edges",
			Help:      "Edges waiting for a missing endpoint to arrive.",
		}),
		SnapshotRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "reconciler",
			Name:      "snapshot_requests_total",
			Help:      "Full snapshot requests issued to the feed.",
		}),
		FeedConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "feed",
			Name:      "connects_total",
			Help:      "Successful feed connections.",
		}),
		FeedDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "feed",
			Name:      "disconnects_total",
			Help:      "Feed connection losses.",
		}),
		LayoutSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "layout",
			Name:      "steps_total",
			Help:      "Force simulation steps performed.",
		}),
		LayoutAlpha: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dealgraph",
			Subsystem: "layout",
			Name:      "alpha",
			Help:      "Current cooling parameter of the force simulation.",
		}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dealgraph",
			Subsystem: "engine",
			Name:      "frame_duration_seconds",
			Help:      "Wall time of one engine loop frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		SimulationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "simulation",
			Name:      "requests_total",
			Help:      "Simulation requests by outcome.",
		}, []string{"outcome"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dealgraph",
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Open feed WebSocket connections.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Feed messages delivered to clients.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealgraph",
			Subsystem: "websocket",
			Name:      "messages_failed_total",
			Help:      "Feed messages dropped on slow or dead clients.",
		}),
	}

	reg.MustRegister(
		m.EventsApplied, m.EventsDropped, m.ParkedEdges, m.SnapshotRequests,
		m.FeedConnects, m.FeedDisconnects,
		m.LayoutSteps, m.LayoutAlpha, m.FrameDuration,
		m.SimulationRequests,
		m.ActiveConnections, m.MessagesSent, m.MessagesFailed,
	)
	return m
}

// Handler returns the /metrics endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
