package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the backend. Each Metrics
// value carries its own registry so tests can construct collectors
// freely.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	BytesWritten   prometheus.Counter
	BytesForwarded prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSDropped     prometheus.Counter
}

// NewMetrics creates a metrics collector backed by a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "backend_terminal_sessions_active",
			Help: "Number of live terminal sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "backend_terminal_sessions_total",
			Help: "Total number of terminal sessions created",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "backend_terminal_input_bytes_total",
			Help: "Total bytes written to terminal sessions",
		}),
		BytesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "backend_terminal_output_bytes_total",
			Help: "Total bytes forwarded from terminal sessions",
		}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "backend_ws_connections",
			Help: "Number of connected WebSocket clients",
		}),
		WSDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "backend_ws_dropped_events_total",
			Help: "Events dropped due to slow WebSocket consumers",
		}),
	}
}

// Handler returns the HTTP handler serving this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SessionStarted records a new terminal session.
func (m *Metrics) SessionStarted() {
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

// SessionEnded records a terminated terminal session.
func (m *Metrics) SessionEnded() {
	m.SessionsActive.Dec()
}

// AddBytesWritten records input bytes delivered to a session.
func (m *Metrics) AddBytesWritten(n int) {
	m.BytesWritten.Add(float64(n))
}

// AddBytesForwarded records output bytes pushed to the front-end.
func (m *Metrics) AddBytesForwarded(n int) {
	m.BytesForwarded.Add(float64(n))
}

// WSConnected records a new WebSocket client.
func (m *Metrics) WSConnected() {
	m.WSConnections.Inc()
}

// WSDisconnected records a departed WebSocket client.
func (m *Metrics) WSDisconnected() {
	m.WSConnections.Dec()
}

// WSEventDropped records an event dropped for a slow consumer.
func (m *Metrics) WSEventDropped() {
	m.WSDropped.Inc()
}
