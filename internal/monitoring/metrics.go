package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gonum.org/v1/gonum/stat"
)

// maxDurationSamples bounds the ring of recent request durations kept for
// quantile summaries.
const maxDurationSamples = 1024

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Lifecycle metrics
	LifecycleTransitions *prometheus.CounterVec
	LifecycleDuration    *prometheus.HistogramVec
	LifecycleErrors      *prometheus.CounterVec

	// Instance metrics
	InstancesActive prometheus.Gauge
	InstancesTotal  prometheus.Counter

	// Sandbox metrics
	SandboxesActive prometheus.Gauge
	SandboxEvals    *prometheus.CounterVec

	// Registry metrics
	RegistryApps prometheus.Gauge

	// Global state bus metrics
	BusEvents    prometheus.Counter
	BusListeners prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot  snapshot
	durations []float64

	mu sync.RWMutex
}

// snapshot holds current metric values for the JSON API
type snapshot struct {
	TotalRequests     int64
	TotalErrors       int64
	ActiveInstances   int64
	ActiveConnections int64
	TotalDuration     float64 // sum of all request durations
	RequestCount      int64   // count for averaging
}

// Stats summarizes request and lifecycle activity for the JSON API.
type Stats struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveInstances   int64   `json:"active_instances"`
	ActiveConnections int64   `json:"active_connections"`
	AvgDurationMs     float64 `json:"avg_duration_ms"`
	P50DurationMs     float64 `json:"p50_duration_ms"`
	P95DurationMs     float64 `json:"p95_duration_ms"`
	P99DurationMs     float64 `json:"p99_duration_ms"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector on the given registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiankun_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qiankun_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qiankun_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qiankun_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Lifecycle metrics
		LifecycleTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiankun_lifecycle_transitions_total",
				Help: "Total number of lifecycle transitions",
			},
			[]string{"app", "operation", "status"},
		),
		LifecycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qiankun_lifecycle_duration_seconds",
				Help:    "Lifecycle transition duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"app", "operation"},
		),
		LifecycleErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiankun_lifecycle_errors_total",
				Help: "Total number of lifecycle errors",
			},
			[]string{"app", "operation", "error_type"},
		),

		// Instance metrics
		InstancesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qiankun_instances_active",
				Help: "Number of mounted application instances",
			},
		),
		InstancesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "qiankun_instances_total",
				Help: "Total number of application instances loaded",
			},
		),

		// Sandbox metrics
		SandboxesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qiankun_sandboxes_active",
				Help: "Number of live sandboxes",
			},
		),
		SandboxEvals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiankun_sandbox_evals_total",
				Help: "Total number of sandbox script evaluations",
			},
			[]string{"mode", "status"},
		),

		// Registry metrics
		RegistryApps: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qiankun_registry_apps",
				Help: "Number of registered applications",
			},
		),

		// Global state bus metrics
		BusEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "qiankun_bus_events_total",
				Help: "Total number of global state changes",
			},
		),
		BusListeners: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qiankun_bus_listeners",
				Help: "Number of global state listeners",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qiankun_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiankun_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qiankun_uptime_seconds",
				Help: "Host uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	if len(m.durations) == maxDurationSamples {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration.Seconds())
	m.mu.Unlock()
}

// RecordLifecycle records one lifecycle transition
func (m *Metrics) RecordLifecycle(app, operation, status string, duration time.Duration) {
	m.LifecycleTransitions.WithLabelValues(app, operation, status).Inc()
	m.LifecycleDuration.WithLabelValues(app, operation).Observe(duration.Seconds())
}

// RecordLifecycleError records a lifecycle error
func (m *Metrics) RecordLifecycleError(app, operation, errorType string) {
	m.LifecycleErrors.WithLabelValues(app, operation, errorType).Inc()
}

// RecordSandboxEval records a script evaluation
func (m *Metrics) RecordSandboxEval(mode, status string) {
	m.SandboxEvals.WithLabelValues(mode, status).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// SetInstancesActive sets the number of mounted instances
func (m *Metrics) SetInstancesActive(count int) {
	m.InstancesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveInstances = int64(count)
	m.mu.Unlock()
}

// IncInstancesTotal increments the total instances counter
func (m *Metrics) IncInstancesTotal() {
	m.InstancesTotal.Inc()
}

// IncSandboxes increments the live sandbox gauge
func (m *Metrics) IncSandboxes() {
	m.SandboxesActive.Inc()
}

// DecSandboxes decrements the live sandbox gauge
func (m *Metrics) DecSandboxes() {
	m.SandboxesActive.Dec()
}

// SetRegistryApps sets the number of registered applications
func (m *Metrics) SetRegistryApps(count int) {
	m.RegistryApps.Set(float64(count))
}

// IncBusEvents increments the global state change counter
func (m *Metrics) IncBusEvents() {
	m.BusEvents.Inc()
}

// SetBusListeners sets the number of global state listeners
func (m *Metrics) SetBusListeners(count int) {
	m.BusListeners.Set(float64(count))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// GetStats summarizes activity for the JSON stats endpoint. Quantiles are
// computed over the recent duration window.
func (m *Metrics) GetStats() Stats {
	m.mu.RLock()
	s := m.snapshot
	samples := make([]float64, len(m.durations))
	copy(samples, m.durations)
	m.mu.RUnlock()

	out := Stats{
		TotalRequests:     s.TotalRequests,
		TotalErrors:       s.TotalErrors,
		ActiveInstances:   s.ActiveInstances,
		ActiveConnections: s.ActiveConnections,
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
	}
	if s.RequestCount > 0 {
		out.AvgDurationMs = s.TotalDuration / float64(s.RequestCount) * 1000
	}
	if len(samples) > 0 {
		sort.Float64s(samples)
		out.P50DurationMs = stat.Quantile(0.5, stat.Empirical, samples, nil) * 1000
		out.P95DurationMs = stat.Quantile(0.95, stat.Empirical, samples, nil) * 1000
		out.P99DurationMs = stat.Quantile(0.99, stat.Empirical, samples, nil) * 1000
	}
	return out
}
