package bench

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/analyzer"
)

// TransportResult summarizes one transport's run
type TransportResult struct {
	Transport     string `json:"transport"`
	Sent          int    `json:"sent"`
	Received      int    `json:"received"`
	Failures      int    `json:"failures"`
	Corrupt       int    `json:"corrupt"`
	DurationNs    uint64 `json:"duration_ns"`
	ThroughputMPS uint64 `json:"throughput_mps"`
	Aborted       bool   `json:"aborted,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Lost returns how many sent messages were never received
func (r TransportResult) Lost() int {
	return r.Sent - r.Received
}

// Report is the outcome of a run
type Report struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	Messages    int               `json:"messages"`
	PayloadSize int               `json:"payload_size"`
	BatchSize   int               `json:"batch_size"`
	Results     []TransportResult `json:"results"`
	Stats       analyzer.Stats    `json:"stats"`
	Suggestions []string          `json:"suggestions"`
}

// JSON encodes the report with two-space indentation
func (r *Report) JSON() ([]byte, error) {
	return sonic.MarshalIndent(r, "", "  ")
}

// DecodeReport parses a report produced by JSON
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
