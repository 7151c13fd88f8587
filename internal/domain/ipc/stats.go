package ipc

import (
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
)

// StatsSnapshot is a point-in-time copy of service-wide statistics
type StatsSnapshot struct {
	ServiceID        string `json:"service_id"`
	TotalChannels    uint64 `json:"total_channels"`
	ActiveChannels   int64  `json:"active_channels"`
	TotalMessages    uint64 `json:"total_messages"`
	ZeroCopyMessages uint64 `json:"zero_copy_messages"`
	BatchOperations  uint64 `json:"batch_operations"`
	AvgMessageSize   uint64 `json:"avg_message_size"`
	Regions          int    `json:"regions"`
	Pools            int    `json:"pools"`
}

type serviceStats struct {
	totalChannels  atomic.Uint64
	activeChannels atomic.Int64
	zeroCopy       atomic.Uint64
	batchOps       atomic.Uint64

	// total and average move together
	mu            sync.Mutex
	totalMessages uint64
	avgSize       uint64
}

func (st *serviceStats) recordMessages(msgs ...message.Message) {
	if len(msgs) == 0 {
		return
	}

	st.mu.Lock()
	for _, m := range msgs {
		st.totalMessages++
		n := st.totalMessages
		st.avgSize = (st.avgSize*(n-1) + uint64(m.Size())) / n
	}
	st.mu.Unlock()

	for _, m := range msgs {
		if m.IsZeroCopy() {
			st.zeroCopy.Add(1)
		}
	}
}

// Stats returns service-wide statistics
func (s *Service) Stats() StatsSnapshot {
	s.stats.mu.Lock()
	total, avg := s.stats.totalMessages, s.stats.avgSize
	s.stats.mu.Unlock()

	s.regionsMu.RLock()
	regions := len(s.regions)
	s.regionsMu.RUnlock()

	s.poolsMu.RLock()
	pools := len(s.pools)
	s.poolsMu.RUnlock()

	return StatsSnapshot{
		ServiceID:        s.id.String(),
		TotalChannels:    s.stats.totalChannels.Load(),
		ActiveChannels:   s.stats.activeChannels.Load(),
		TotalMessages:    total,
		ZeroCopyMessages: s.stats.zeroCopy.Load(),
		BatchOperations:  s.stats.batchOps.Load(),
		AvgMessageSize:   avg,
		Regions:          regions,
		Pools:            pools,
	}
}
