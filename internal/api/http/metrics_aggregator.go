package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/analyzer"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/monitoring"
)

// MetricsAggregator joins the request metrics, service statistics and the
// analyzer window into one JSON document
type MetricsAggregator struct {
	metrics  *monitoring.Metrics
	svc      *ipc.Service
	analyzer *analyzer.PerformanceAnalyzer
}

// NewMetricsAggregator creates a metrics aggregator. metrics and perf may
// be nil.
func NewMetricsAggregator(metrics *monitoring.Metrics, svc *ipc.Service, perf *analyzer.PerformanceAnalyzer) *MetricsAggregator {
	return &MetricsAggregator{
		metrics:  metrics,
		svc:      svc,
		analyzer: perf,
	}
}

// MetricsSnapshot represents a snapshot of all service metrics
type MetricsSnapshot struct {
	Timestamp   time.Time         `json:"timestamp"`
	Service     ipc.StatsSnapshot `json:"service"`
	Performance *analyzer.Stats   `json:"performance,omitempty"`
	Summary     MetricsSummary    `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	ErrorRate        float64 `json:"error_rate"`
	ActiveChannels   int64   `json:"active_channels"`
	MessagesSent     int64   `json:"messages_sent"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// GetAggregatedMetrics serves /metrics/json
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, ma.Collect())
}

// GetPerformanceReport serves the analyzer report as plain text
func (ma *MetricsAggregator) GetPerformanceReport(c *gin.Context) {
	if ma.analyzer == nil {
		c.String(http.StatusServiceUnavailable, "analyzer disabled")
		return
	}
	c.String(http.StatusOK, ma.analyzer.Report())
}

// Collect builds the current snapshot
func (ma *MetricsAggregator) Collect() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Service:   ma.svc.Stats(),
		Summary:   ma.calculateSummary(),
	}
	if ma.analyzer != nil && ma.analyzer.Len() > 0 {
		perf := ma.analyzer.Stats()
		snapshot.Performance = &perf
	}
	return snapshot
}

// calculateSummary computes high-level summary metrics
func (ma *MetricsAggregator) calculateSummary() MetricsSummary {
	summary := MetricsSummary{
		ActiveChannels: ma.svc.Stats().ActiveChannels,
	}
	if ma.metrics == nil {
		return summary
	}

	snapshot := ma.metrics.Snapshot()
	summary.TotalRequests = snapshot.TotalRequests
	summary.MessagesSent = snapshot.MessagesSent
	summary.UptimeSeconds = snapshot.UptimeSeconds

	if snapshot.RequestCount > 0 {
		summary.AverageLatencyMs = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000
	}
	if snapshot.TotalRequests > 0 {
		summary.ErrorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}
	return summary
}
