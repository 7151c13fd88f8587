package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// IPC metrics
	MessagesSent     *prometheus.CounterVec
	MessagesReceived prometheus.Counter
	SendErrors       *prometheus.CounterVec
	ReceiveTimeouts  prometheus.Counter
	BatchOperations  *prometheus.CounterVec
	ZeroCopyMessages prometheus.Counter
	MessageSize      prometheus.Histogram
	ChannelsActive   prometheus.Gauge
	RegionsActive    prometheus.Gauge
	PoolsActive      prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Service call metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec
	ServiceErrors   *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	ActiveChannels int64   `json:"active_channels"`
	MessagesSent   int64   `json:"messages_sent"`
	TotalDuration  float64 `json:"total_duration_seconds"` // sum of all request durations
	RequestCount   int64   `json:"request_count"`          // count for averaging
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered with reg. A nil reg
// uses the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// IPC metrics
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipc_messages_sent_total",
				Help: "Total number of messages enqueued, by requested transport",
			},
			[]string{"transport"},
		),
		MessagesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ipc_messages_received_total",
				Help: "Total number of messages dequeued",
			},
		),
		SendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipc_send_errors_total",
				Help: "Total number of failed sends, by error kind",
			},
			[]string{"kind"},
		),
		ReceiveTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ipc_receive_timeouts_total",
				Help: "Total number of receives that timed out",
			},
		),
		BatchOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipc_batch_operations_total",
				Help: "Total number of batch operations",
			},
			[]string{"op"},
		),
		ZeroCopyMessages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ipc_zero_copy_messages_total",
				Help: "Total number of messages sent by reference",
			},
		),
		MessageSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ipc_message_size_bytes",
				Help:    "Size of sent messages including the header",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
		ChannelsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ipc_channels_active",
				Help: "Number of open channels",
			},
		),
		RegionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ipc_shared_memory_regions_active",
				Help: "Number of live shared-memory regions",
			},
		),
		PoolsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ipc_memory_pools_active",
				Help: "Number of registered memory pools",
			},
		),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipc_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ipc_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ipc_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ipc_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Service call metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipc_service_calls_total",
				Help: "Total number of IPC service calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ipc_service_duration_seconds",
				Help:    "IPC service call duration in seconds",
				Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
			},
			[]string{"service", "method"},
		),
		ServiceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ipc_service_errors_total",
				Help: "Total number of IPC service errors",
			},
			[]string{"service", "method", "error_type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ipc_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		m.uptime,
	)

	return m
}

func (m *Metrics) uptime() float64 {
	return time.Since(m.startTime).Seconds()
}

// RecordSend records one enqueued message
func (m *Metrics) RecordSend(transport string, size int, zeroCopy bool) {
	m.MessagesSent.WithLabelValues(transport).Inc()
	m.MessageSize.Observe(float64(size))
	if zeroCopy {
		m.ZeroCopyMessages.Inc()
	}

	m.mu.Lock()
	m.snapshot.MessagesSent++
	m.mu.Unlock()
}

// RecordReceive records n dequeued messages
func (m *Metrics) RecordReceive(n int) {
	m.MessagesReceived.Add(float64(n))
}

// RecordSendError records a failed send
func (m *Metrics) RecordSendError(kind string) {
	m.SendErrors.WithLabelValues(kind).Inc()
}

// RecordTimeout records a receive that timed out
func (m *Metrics) RecordTimeout() {
	m.ReceiveTimeouts.Inc()
}

// RecordBatch records a batch operation
func (m *Metrics) RecordBatch(op string) {
	m.BatchOperations.WithLabelValues(op).Inc()
}

// SetChannelsActive sets the number of open channels
func (m *Metrics) SetChannelsActive(count int) {
	m.ChannelsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveChannels = int64(count)
	m.mu.Unlock()
}

// SetRegionsActive sets the number of live shared-memory regions
func (m *Metrics) SetRegionsActive(count int) {
	m.RegionsActive.Set(float64(count))
}

// SetPoolsActive sets the number of registered pools
func (m *Metrics) SetPoolsActive(count int) {
	m.PoolsActive.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordServiceError records a service error
func (m *Metrics) RecordServiceError(service, method, errorType string) {
	m.ServiceErrors.WithLabelValues(service, method, errorType).Inc()
}

// Snapshot returns the current values tracked for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	s.UptimeSeconds = m.uptime()
	return s
}
