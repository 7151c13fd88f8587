package analyzer

import (
	"fmt"
	"math"
	"math/bits"
	"slices"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
)

// Suggestion thresholds
const (
	HighLatencyNs       = 100_000
	VarianceFactor      = 3
	LowThroughputPerSec = 100_000
)

// Operation is the kind of IPC call a sample measured
type Operation uint8

const (
	OpSend Operation = iota
	OpReceive
	OpBatchSend
	OpBatchReceive
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OpSend:
		return "send"
	case OpReceive:
		return "receive"
	case OpBatchSend:
		return "batch_send"
	case OpBatchReceive:
		return "batch_receive"
	default:
		return "unknown"
	}
}

// Sample is one measured operation
type Sample struct {
	Timestamp     uint64            `json:"timestamp"`
	LatencyNs     uint64            `json:"latency_ns"`
	ThroughputMPS uint64            `json:"throughput_mps"`
	MessageSize   int               `json:"message_size"`
	Transport     message.Transport `json:"-"`
	Operation     Operation         `json:"-"`
}

// Stats are derived from the current sample window
type Stats struct {
	Samples               int               `json:"samples"`
	MinLatencyNs          uint64            `json:"min_latency_ns"`
	AvgLatencyNs          uint64            `json:"avg_latency_ns"`
	MaxLatencyNs          uint64            `json:"max_latency_ns"`
	LatencyStdDevNs       float64           `json:"latency_stddev_ns"`
	P50LatencyNs          uint64            `json:"p50_latency_ns"`
	P95LatencyNs          uint64            `json:"p95_latency_ns"`
	P99LatencyNs          uint64            `json:"p99_latency_ns"`
	AvgThroughputMPS      uint64            `json:"avg_throughput_mps"`
	MaxThroughputMPS      uint64            `json:"max_throughput_mps"`
	TransportDistribution map[string]uint64 `json:"transport_distribution"`
	OperationDistribution map[string]uint64 `json:"operation_distribution"`
}

// PerformanceAnalyzer keeps the most recent samples and the statistics
// derived from them. It is safe for concurrent use.
type PerformanceAnalyzer struct {
	mu         sync.RWMutex
	samples    []Sample // ring, oldest at start once full
	start      int
	maxSamples int
	stats      Stats
}

// New creates an analyzer that keeps at most maxSamples samples
func New(maxSamples int) *PerformanceAnalyzer {
	if maxSamples <= 0 {
		maxSamples = 1
	}
	return &PerformanceAnalyzer{
		samples:    make([]Sample, 0, maxSamples),
		maxSamples: maxSamples,
	}
}

// AddSample records a sample, evicting the oldest one when full
func (a *PerformanceAnalyzer) AddSample(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.samples) < a.maxSamples {
		a.samples = append(a.samples, s)
	} else {
		a.samples[a.start] = s
		a.start = (a.start + 1) % a.maxSamples
	}
	a.recompute()
}

func (a *PerformanceAnalyzer) recompute() {
	n := len(a.samples)

	latencies := make([]uint64, n)
	latF := make([]float64, n)
	thrF := make([]float64, n)
	transports := make(map[string]uint64)
	ops := make(map[string]uint64)

	var latSum, thrSum uint64
	for i, s := range a.samples {
		latencies[i] = s.LatencyNs
		latF[i] = float64(s.LatencyNs)
		thrF[i] = float64(s.ThroughputMPS)
		latSum += s.LatencyNs
		thrSum += s.ThroughputMPS
		transports[s.Transport.String()]++
		ops[s.Operation.String()]++
	}
	slices.Sort(latencies)

	st := Stats{
		Samples:               n,
		MinLatencyNs:          latencies[0],
		AvgLatencyNs:          latSum / uint64(n),
		MaxLatencyNs:          latencies[n-1],
		P50LatencyNs:          latencies[n*50/100],
		P95LatencyNs:          latencies[n*95/100],
		P99LatencyNs:          latencies[n*99/100],
		AvgThroughputMPS:      thrSum / uint64(n),
		MaxThroughputMPS:      uint64(floats.Max(thrF)),
		TransportDistribution: transports,
		OperationDistribution: ops,
	}
	if n > 1 {
		st.LatencyStdDevNs = stat.StdDev(latF, nil)
	}
	a.stats = st
}

// Stats returns a copy of the current statistics
func (a *PerformanceAnalyzer) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := a.stats
	st.TransportDistribution = copyCounts(a.stats.TransportDistribution)
	st.OperationDistribution = copyCounts(a.stats.OperationDistribution)
	return st
}

func copyCounts(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Samples returns the window, oldest first
func (a *PerformanceAnalyzer) Samples() []Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Sample, 0, len(a.samples))
	out = append(out, a.samples[a.start:]...)
	out = append(out, a.samples[:a.start]...)
	return out
}

// Len returns the number of samples in the window
func (a *PerformanceAnalyzer) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.samples)
}

// Reset drops every sample
func (a *PerformanceAnalyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = a.samples[:0]
	a.start = 0
	a.stats = Stats{}
}

// OptimizationSuggestions returns tuning hints for the current window.
// An empty window yields none.
func (a *PerformanceAnalyzer) OptimizationSuggestions() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := a.stats
	if st.Samples == 0 {
		return nil
	}

	var suggestions []string
	if st.AvgLatencyNs > HighLatencyNs {
		suggestions = append(suggestions, "Consider using lock-free queues or shared memory for better latency")
	}
	if st.P95LatencyNs > st.AvgLatencyNs*VarianceFactor {
		suggestions = append(suggestions, "High latency variance detected, check for system load or contention")
	}
	if st.AvgThroughputMPS < LowThroughputPerSec {
		suggestions = append(suggestions, "Consider batch operations for better throughput")
	}

	var total uint64
	for _, c := range st.TransportDistribution {
		total += c
	}
	if lockFree := st.TransportDistribution[message.TransportLockFreeQueue.String()]; lockFree < total/2 {
		suggestions = append(suggestions, "Consider using lock-free queues more frequently for better performance")
	}
	return suggestions
}

// Report renders the statistics as text
func (a *PerformanceAnalyzer) Report() string {
	st := a.Stats()

	names := make([]string, 0, len(st.TransportDistribution))
	for name := range st.TransportDistribution {
		names = append(names, name)
	}
	sort.Strings(names)

	dist := make([]string, len(names))
	for i, name := range names {
		dist[i] = fmt.Sprintf("%s=%d", name, st.TransportDistribution[name])
	}

	var b strings.Builder
	b.WriteString("IPC Performance Analysis Report:\n")
	fmt.Fprintf(&b, "  Average Latency:    %d ns\n", st.AvgLatencyNs)
	fmt.Fprintf(&b, "  P50 Latency:        %d ns\n", st.P50LatencyNs)
	fmt.Fprintf(&b, "  P95 Latency:        %d ns\n", st.P95LatencyNs)
	fmt.Fprintf(&b, "  P99 Latency:        %d ns\n", st.P99LatencyNs)
	fmt.Fprintf(&b, "  Max Latency:        %d ns\n", st.MaxLatencyNs)
	fmt.Fprintf(&b, "  Average Throughput: %d msg/s\n", st.AvgThroughputMPS)
	fmt.Fprintf(&b, "  Max Throughput:     %d msg/s\n", st.MaxThroughputMPS)
	fmt.Fprintf(&b, "  Transports:         %s\n", strings.Join(dist, ", "))
	fmt.Fprintf(&b, "  Sample Count:       %d", st.Samples)
	return b.String()
}

// Throughput converts a message count over durationNs into messages per
// second. A zero duration yields 0.
func Throughput(messages, durationNs uint64) uint64 {
	if durationNs == 0 {
		return 0
	}
	hi, lo := bits.Mul64(messages, 1_000_000_000)
	if hi >= durationNs {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, durationNs)
	return q
}
