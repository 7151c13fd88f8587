package http

import (
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/monitoring"
)

// HandlerMetrics records service call metrics for handler operations
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil metrics disables
// tracking.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackChannelOperation times a channel table operation. Call the returned
// function with the operation's error.
func (hm *HandlerMetrics) TrackChannelOperation(operation string) func(error) {
	return hm.track("channels", operation)
}

// TrackMessageOperation times a send or receive
func (hm *HandlerMetrics) TrackMessageOperation(operation string) func(error) {
	return hm.track("messages", operation)
}

func (hm *HandlerMetrics) track(service, operation string) func(error) {
	if hm == nil || hm.metrics == nil {
		return func(error) {}
	}
	timer := monitoring.NewTimer(hm.metrics, service, operation)
	return timer.StopErr
}
