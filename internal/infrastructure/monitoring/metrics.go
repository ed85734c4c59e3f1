package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. Every method is safe on a nil
// receiver so components can run without metrics in tests.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Guest metrics
	GuestsActive     prometheus.Gauge
	GuestsCreated    prometheus.Counter
	GuestsRemoved    prometheus.Counter
	Attaches         *prometheus.CounterVec
	WatchedEmbedders prometheus.Gauge
	ForwardedTotal   *prometheus.CounterVec

	// Gateway metrics
	GatewayRequests *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	mu     sync.Mutex
	active int64
}

// NewMetrics creates a metrics collector registered on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guesthost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guesthost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Guest metrics
		GuestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "guesthost_guests_active",
				Help: "Number of guests in the registry",
			},
		),
		GuestsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "guesthost_guests_created_total",
				Help: "Total number of guests created",
			},
		),
		GuestsRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "guesthost_guests_removed_total",
				Help: "Total number of guests removed from the registry",
			},
		),
		Attaches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guesthost_attaches_total",
				Help: "Total number of attach requests by outcome",
			},
			[]string{"outcome"},
		),
		WatchedEmbedders: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "guesthost_watched_embedders",
				Help: "Number of embedders under watch",
			},
		),
		ForwardedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guesthost_forwarded_total",
				Help: "Total number of guest messages forwarded to embedders",
			},
			[]string{"channel"},
		),

		// Gateway metrics
		GatewayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guesthost_gateway_requests_total",
				Help: "Total number of gateway requests",
			},
			[]string{"kind", "status"},
		),
		GatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guesthost_gateway_request_duration_seconds",
				Help:    "Gateway request duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"kind"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "guesthost_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guesthost_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "guesthost_uptime_seconds",
				Help: "Uptime in seconds",
			},
		),
	}

	return m
}

// RunUptime updates the uptime gauge every second until stop is closed.
func (m *Metrics) RunUptime(stop <-chan struct{}) {
	if m == nil {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-stop:
			return
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGatewayRequest records one handled gateway request
func (m *Metrics) RecordGatewayRequest(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(kind, status).Inc()
	m.GatewayDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// GuestCreated counts a new registry record
func (m *Metrics) GuestCreated() {
	if m == nil {
		return
	}
	m.GuestsCreated.Inc()
	m.mu.Lock()
	m.active++
	m.GuestsActive.Set(float64(m.active))
	m.mu.Unlock()
}

// GuestRemoved counts a dropped registry record
func (m *Metrics) GuestRemoved() {
	if m == nil {
		return
	}
	m.GuestsRemoved.Inc()
	m.mu.Lock()
	m.active--
	m.GuestsActive.Set(float64(m.active))
	m.mu.Unlock()
}

// Attach records an attach outcome
func (m *Metrics) Attach(outcome string) {
	if m == nil {
		return
	}
	m.Attaches.WithLabelValues(outcome).Inc()
}

// SetWatchedEmbedders sets the watched embedder count
func (m *Metrics) SetWatchedEmbedders(count int) {
	if m == nil {
		return
	}
	m.WatchedEmbedders.Set(float64(count))
}

// Forwarded counts a message relayed to an embedder
func (m *Metrics) Forwarded(channel string) {
	if m == nil {
		return
	}
	m.ForwardedTotal.WithLabelValues(channel).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
