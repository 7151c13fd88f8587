package ipc

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/channel"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/memory"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/clock"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/id"
)

// Service owns every channel, shared-memory region and memory pool
type Service struct {
	id               id.ServiceID
	cfg              config.IPCConfig
	defaultTransport message.Transport
	logger           *logging.Logger
	metrics          *monitoring.Metrics
	provider         memory.Provider
	clock            clock.Clock

	// Channel and region ids share one sequence
	ids *id.Sequence

	mu       sync.RWMutex
	channels map[uint64]*channel.Channel // Protected by mu
	names    map[string]uint64           // Protected by mu

	regionsMu sync.RWMutex
	regions   map[uint64]*memory.SharedMemoryRegion // Protected by regionsMu

	poolsMu sync.RWMutex
	pools   map[int]*memory.MemoryPool // keyed by block size, protected by poolsMu

	stats serviceStats
}

// ChannelInfo describes an open channel
type ChannelInfo struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	DefaultTransport string `json:"default_transport"`
	MaxMessages      int    `json:"max_messages"`
	Count            int    `json:"count"`
	HasRegion        bool   `json:"has_region"`
	HasPool          bool   `json:"has_pool"`
}

// New creates a service from validated configuration
func New(cfg config.IPCConfig, logger *logging.Logger) (*Service, error) {
	const op = "ipc.New"

	if err := cfg.Validate(); err != nil {
		return nil, ipcerr.Wrap(op, ipcerr.KindInvalidArgument, err)
	}
	transport, err := cfg.Transport()
	if err != nil {
		return nil, ipcerr.Wrap(op, ipcerr.KindInvalidArgument, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Service{
		id:               id.NewServiceID(),
		cfg:              cfg,
		defaultTransport: transport,
		provider:         memory.NewHeapProvider(cfg.MemoryLimitBytes),
		clock:            clock.System(),
		ids:              id.NewSequence(),
		channels:         make(map[uint64]*channel.Channel),
		names:            make(map[string]uint64),
		regions:          make(map[uint64]*memory.SharedMemoryRegion),
		pools:            make(map[int]*memory.MemoryPool),
	}
	s.logger = logging.Wrap(logger.Component("ipc").With(zap.String("service_id", s.id.String())))

	s.logger.Info("IPC service initialized",
		zap.Int("default_capacity", cfg.DefaultCapacity),
		zap.String("default_transport", transport.String()),
		zap.Int("batch_threshold", cfg.BatchThreshold))

	return s, nil
}

// WithMetrics adds metrics tracking to the service
func (s *Service) WithMetrics(metrics *monitoring.Metrics) *Service {
	s.metrics = metrics
	return s
}

// WithMemoryProvider replaces the provider backing regions and pools.
// It must be called before any channel, region or pool is created.
func (s *Service) WithMemoryProvider(provider memory.Provider) *Service {
	if provider != nil {
		s.provider = provider
	}
	return s
}

// WithClock replaces the clock channels use for latency accounting and
// message timestamps
func (s *Service) WithClock(c clock.Clock) *Service {
	if c != nil {
		s.clock = c
	}
	return s
}

// ServiceID returns the instance identifier
func (s *Service) ServiceID() id.ServiceID {
	return s.id
}

// Config returns the IPC configuration the service was built with
func (s *Service) Config() config.IPCConfig {
	return s.cfg
}

// CreateChannel creates a channel using the configured default transport
func (s *Service) CreateChannel(name string, typ channel.Type, capacity int) (uint64, error) {
	return s.CreateChannelWithTransport(name, typ, capacity, s.defaultTransport)
}

// CreateOptimizedChannel creates a channel with the configured default
// capacity and transport
func (s *Service) CreateOptimizedChannel(name string, typ channel.Type) (uint64, error) {
	return s.CreateChannelWithTransport(name, typ, s.cfg.DefaultCapacity, s.defaultTransport)
}

// CreateChannelWithTransport creates a channel whose default transport is
// transport. SharedMemory channels get a region sized for capacity
// messages; MemoryPool channels get a pool with one block per message.
func (s *Service) CreateChannelWithTransport(name string, typ channel.Type, capacity int, transport message.Transport) (uint64, error) {
	const op = "ipc.CreateChannel"

	if name == "" {
		return 0, ipcerr.New(op, ipcerr.KindInvalidArgument, "channel name is empty")
	}
	if capacity <= 0 {
		return 0, ipcerr.New(op, ipcerr.KindInvalidArgument, "capacity must be positive, got %d", capacity)
	}
	if !transport.Implemented() {
		return 0, ipcerr.New(op, ipcerr.KindUnsupported, "transport %s has no implementation", transport)
	}
	if !s.cfg.ZeroCopyEnabled && (transport == message.TransportSharedMemory || transport == message.TransportMemoryPool) {
		return 0, ipcerr.New(op, ipcerr.KindUnsupported, "zero-copy transports are disabled")
	}

	if _, taken := s.GetChannelByName(name); taken {
		return 0, ipcerr.New(op, ipcerr.KindNameConflict, "channel %q already exists", name)
	}

	chID := s.ids.Next()

	var (
		region *memory.SharedMemoryRegion
		pool   *memory.MemoryPool
		err    error
	)
	switch transport {
	case message.TransportSharedMemory:
		per := s.cfg.RegionBytesPerMessage
		if capacity > math.MaxInt/per {
			return 0, ipcerr.New(op, ipcerr.KindInvalidArgument, "region for %d messages is too large", capacity)
		}
		region, err = memory.NewSharedMemoryRegion(s.provider, chID, capacity*per, memory.DefaultPermissions)
	case message.TransportMemoryPool:
		pool, err = memory.NewMemoryPool(s.provider, s.cfg.PoolBlockSize, capacity)
	}
	if err != nil {
		s.logger.Warn("Failed to provision channel backing",
			zap.String("channel", name), zap.String("transport", transport.String()), zap.Error(err))
		return 0, err
	}

	ch := channel.New(channel.Config{
		ID:               chID,
		Name:             name,
		Type:             typ,
		MaxMessages:      capacity,
		DefaultTransport: transport,
		BatchThreshold:   s.cfg.BatchThreshold,
		Region:           region,
		Pool:             pool,
		Clock:            s.clock,
	})

	s.mu.Lock()
	if _, taken := s.names[name]; taken {
		s.mu.Unlock()
		s.releaseBacking(chID, region, pool)
		return 0, ipcerr.New(op, ipcerr.KindNameConflict, "channel %q already exists", name)
	}
	s.channels[chID] = ch
	s.names[name] = chID
	s.mu.Unlock()

	if region != nil {
		s.regionsMu.Lock()
		s.regions[chID] = region
		s.regionsMu.Unlock()
	}
	poolRegistered := false
	if pool != nil {
		s.poolsMu.Lock()
		if _, exists := s.pools[pool.BlockSize()]; !exists {
			s.pools[pool.BlockSize()] = pool
			poolRegistered = true
		}
		s.poolsMu.Unlock()
	}

	s.stats.totalChannels.Add(1)
	s.stats.activeChannels.Add(1)
	s.syncGauges()

	s.logger.ForChannel(chID, name).Info("Channel created",
		zap.String("type", typ.String()),
		zap.String("transport", transport.String()),
		zap.Int("capacity", capacity),
		zap.Bool("region", region != nil),
		zap.Bool("pool", pool != nil),
		zap.Bool("pool_registered", poolRegistered))

	return chID, nil
}

func (s *Service) releaseBacking(channelID uint64, region *memory.SharedMemoryRegion, pool *memory.MemoryPool) {
	if region != nil {
		if _, err := region.Release(); err != nil {
			s.logger.Warn("Failed to return region memory", zap.Uint64("channel_id", channelID), zap.Error(err))
		}
	}
	if pool != nil {
		if err := pool.Close(); err != nil {
			s.logger.Warn("Failed to return pool memory", zap.Uint64("channel_id", channelID), zap.Error(err))
		}
	}
}

// DestroyChannel closes a channel, drops its queued messages and releases
// its region and pool
func (s *Service) DestroyChannel(channelID uint64) error {
	const op = "ipc.DestroyChannel"

	s.mu.Lock()
	ch, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return ipcerr.New(op, ipcerr.KindNotFound, "channel %d", channelID)
	}
	delete(s.channels, channelID)
	delete(s.names, ch.Name())
	s.mu.Unlock()

	dropped := ch.Close()

	if region := ch.Region(); region != nil {
		s.regionsMu.Lock()
		remaining, err := region.Release()
		if remaining == 0 && s.regions[region.ID()] == region {
			delete(s.regions, region.ID())
		}
		s.regionsMu.Unlock()
		if err != nil {
			s.logger.Warn("Failed to return region memory", zap.Uint64("channel_id", channelID), zap.Error(err))
		}
	}
	if pool := ch.Pool(); pool != nil {
		s.poolsMu.Lock()
		if s.pools[pool.BlockSize()] == pool {
			delete(s.pools, pool.BlockSize())
		}
		s.poolsMu.Unlock()
		if err := pool.Close(); err != nil {
			s.logger.Warn("Failed to return pool memory", zap.Uint64("channel_id", channelID), zap.Error(err))
		}
	}

	s.stats.activeChannels.Add(-1)
	s.syncGauges()

	s.logger.ForChannel(channelID, ch.Name()).Info("Channel destroyed", zap.Int("dropped_messages", dropped))
	return nil
}

// GetChannelByName resolves a channel name to its id
func (s *Service) GetChannelByName(name string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chID, ok := s.names[name]
	return chID, ok
}

// ListChannels describes every open channel, ordered by id
func (s *Service) ListChannels() []ChannelInfo {
	s.mu.RLock()
	chans := make([]*channel.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		chans = append(chans, ch)
	}
	s.mu.RUnlock()

	sort.Slice(chans, func(i, j int) bool { return chans[i].ID() < chans[j].ID() })

	infos := make([]ChannelInfo, len(chans))
	for i, ch := range chans {
		infos[i] = ChannelInfo{
			ID:               ch.ID(),
			Name:             ch.Name(),
			Type:             ch.Type().String(),
			DefaultTransport: ch.DefaultTransport().String(),
			MaxMessages:      ch.MaxMessages(),
			Count:            ch.Count(),
			HasRegion:        ch.Region() != nil,
			HasPool:          ch.Pool() != nil,
		}
	}
	return infos
}

// ChannelStats returns a channel's statistics
func (s *Service) ChannelStats(channelID uint64) (channel.StatsSnapshot, error) {
	ch, err := s.channel("ipc.ChannelStats", channelID)
	if err != nil {
		return channel.StatsSnapshot{}, err
	}
	return ch.Stats(), nil
}

// channel looks up an open channel. The table lock is released before the
// caller operates on it.
func (s *Service) channel(op string, channelID uint64) (*channel.Channel, error) {
	s.mu.RLock()
	ch, ok := s.channels[channelID]
	s.mu.RUnlock()

	if !ok {
		return nil, ipcerr.New(op, ipcerr.KindNotFound, "channel %d", channelID)
	}
	return ch, nil
}

func (s *Service) syncGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetChannelsActive(int(s.stats.activeChannels.Load()))

	s.regionsMu.RLock()
	regions := len(s.regions)
	s.regionsMu.RUnlock()
	s.metrics.SetRegionsActive(regions)

	s.poolsMu.RLock()
	pools := len(s.pools)
	s.poolsMu.RUnlock()
	s.metrics.SetPoolsActive(pools)
}
