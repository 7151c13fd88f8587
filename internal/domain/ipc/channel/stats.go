package channel

import (
	"sync"
	"sync/atomic"
)

// StatsSnapshot is a point-in-time copy of channel statistics
type StatsSnapshot struct {
	MessagesSent     uint64 `json:"messages_sent"`
	MessagesReceived uint64 `json:"messages_received"`
	BytesSent        uint64 `json:"bytes_sent"`
	BytesReceived    uint64 `json:"bytes_received"`
	Errors           uint64 `json:"errors"`
	Timeouts         uint64 `json:"timeouts"`
	AvgLatencyNs     uint64 `json:"avg_latency_ns"`
	MaxLatencyNs     uint64 `json:"max_latency_ns"`
}

// stats counters are atomic; the latency average needs a consistent
// (count, avg) pair and lives under latMu
type stats struct {
	sent          atomic.Uint64
	received      atomic.Uint64
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	errors        atomic.Uint64
	timeouts      atomic.Uint64

	latMu      sync.Mutex
	latSamples uint64
	avgLatency uint64
	maxLatency uint64
}

func (s *stats) recordSend(bytes, latencyNs uint64) {
	s.sent.Add(1)
	s.bytesSent.Add(bytes)
	s.recordLatency(1, latencyNs)
}

// recordSendBatch counts n messages sent together, attributing an equal
// share of the total latency to each
func (s *stats) recordSendBatch(n int, bytes, totalLatencyNs uint64) {
	if n <= 0 {
		return
	}
	s.sent.Add(uint64(n))
	s.bytesSent.Add(bytes)
	s.recordLatency(uint64(n), totalLatencyNs/uint64(n))
}

func (s *stats) recordLatency(n, latencyNs uint64) {
	s.latMu.Lock()
	defer s.latMu.Unlock()

	prev := s.latSamples
	s.latSamples += n
	s.avgLatency = (s.avgLatency*prev + latencyNs*n) / s.latSamples
	if latencyNs > s.maxLatency {
		s.maxLatency = latencyNs
	}
}

func (s *stats) recordReceive(n int, bytes uint64) {
	s.received.Add(uint64(n))
	s.bytesReceived.Add(bytes)
}

func (s *stats) snapshot() StatsSnapshot {
	s.latMu.Lock()
	avg, peak := s.avgLatency, s.maxLatency
	s.latMu.Unlock()

	return StatsSnapshot{
		MessagesSent:     s.sent.Load(),
		MessagesReceived: s.received.Load(),
		BytesSent:        s.bytesSent.Load(),
		BytesReceived:    s.bytesReceived.Load(),
		Errors:           s.errors.Load(),
		Timeouts:         s.timeouts.Load(),
		AvgLatencyNs:     avg,
		MaxLatencyNs:     peak,
	}
}
