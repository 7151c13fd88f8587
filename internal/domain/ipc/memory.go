package ipc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/memory"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
)

// CreateSharedMemory allocates a standalone region and returns its id.
// Region ids come from the same sequence as channel ids.
func (s *Service) CreateSharedMemory(size int, perms uint32) (uint64, error) {
	const op = "ipc.CreateSharedMemory"

	if !s.cfg.ZeroCopyEnabled {
		return 0, ipcerr.New(op, ipcerr.KindUnsupported, "zero-copy transports are disabled")
	}

	regionID := s.ids.Next()
	region, err := memory.NewSharedMemoryRegion(s.provider, regionID, size, perms)
	if err != nil {
		return 0, err
	}

	s.regionsMu.Lock()
	s.regions[regionID] = region
	s.regionsMu.Unlock()
	s.syncGauges()

	s.logger.Info("Shared memory region created",
		zap.Uint64("region_id", regionID), zap.Int("size", size), zap.Uint32("perms", perms))
	return regionID, nil
}

// SharedMemory returns a live region
func (s *Service) SharedMemory(regionID uint64) (*memory.SharedMemoryRegion, bool) {
	s.regionsMu.RLock()
	defer s.regionsMu.RUnlock()

	region, ok := s.regions[regionID]
	return region, ok
}

// RetainSharedMemory takes another reference on a region
func (s *Service) RetainSharedMemory(regionID uint64) (uint64, error) {
	s.regionsMu.RLock()
	defer s.regionsMu.RUnlock()

	region, ok := s.regions[regionID]
	if !ok {
		return 0, ipcerr.New("ipc.RetainSharedMemory", ipcerr.KindNotFound, "region %d", regionID)
	}
	return region.AddRef(), nil
}

// ReleaseSharedMemory drops a reference on a region and returns the
// remaining count. The region is unregistered when the count reaches 0.
func (s *Service) ReleaseSharedMemory(regionID uint64) (uint64, error) {
	const op = "ipc.ReleaseSharedMemory"

	s.regionsMu.Lock()
	region, ok := s.regions[regionID]
	if !ok {
		s.regionsMu.Unlock()
		return 0, ipcerr.New(op, ipcerr.KindNotFound, "region %d", regionID)
	}
	remaining, err := region.Release()
	if remaining == 0 {
		delete(s.regions, regionID)
	}
	s.regionsMu.Unlock()

	if remaining == 0 {
		s.syncGauges()
		s.logger.Info("Shared memory region released", zap.Uint64("region_id", regionID))
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return remaining, nil
}

// CreateMemoryPool creates a pool and registers it under its block size,
// replacing any pool already registered there. A replaced pool that no
// channel owns is returned to the provider.
func (s *Service) CreateMemoryPool(blockSize, capacity int) (int, error) {
	const op = "ipc.CreateMemoryPool"

	if !s.cfg.ZeroCopyEnabled {
		return 0, ipcerr.New(op, ipcerr.KindUnsupported, "zero-copy transports are disabled")
	}

	pool, err := memory.NewMemoryPool(s.provider, blockSize, capacity)
	if err != nil {
		return 0, err
	}

	s.poolsMu.Lock()
	old := s.pools[blockSize]
	s.pools[blockSize] = pool
	s.poolsMu.Unlock()

	if old != nil && !s.ownedByChannel(old) {
		_ = old.Close()
	}
	s.syncGauges()

	s.logger.Info("Memory pool created",
		zap.Int("block_size", blockSize), zap.Int("capacity", capacity), zap.Bool("replaced", old != nil))
	return blockSize, nil
}

func (s *Service) ownedByChannel(pool *memory.MemoryPool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.channels {
		if ch.Pool() == pool {
			return true
		}
	}
	return false
}

// MemoryPool returns the pool registered under a block size
func (s *Service) MemoryPool(blockSize int) (*memory.MemoryPool, bool) {
	s.poolsMu.RLock()
	defer s.poolsMu.RUnlock()

	pool, ok := s.pools[blockSize]
	return pool, ok
}

// AllocateBlock takes a block from the pool registered under blockSize. The
// returned generation is the ownership token to attach to messages that
// reference the block.
func (s *Service) AllocateBlock(blockSize int) (index int, generation uint64, err error) {
	const op = "ipc.AllocateBlock"

	pool, ok := s.MemoryPool(blockSize)
	if !ok {
		return 0, 0, ipcerr.New(op, ipcerr.KindNotFound, "no pool with block size %d", blockSize)
	}
	index, ok = pool.Allocate()
	if !ok {
		return 0, 0, ipcerr.New(op, ipcerr.KindCapacityExceeded, "pool with block size %d is exhausted", blockSize)
	}
	return index, pool.Generation(index), nil
}

// FreeBlock returns a block to the pool registered under blockSize
func (s *Service) FreeBlock(blockSize, index int) error {
	pool, ok := s.MemoryPool(blockSize)
	if !ok {
		return ipcerr.New("ipc.FreeBlock", ipcerr.KindNotFound, "no pool with block size %d", blockSize)
	}
	return pool.Deallocate(index)
}

// AllocateChannelBlock takes a block from a MemoryPool channel's own pool
// and returns its bytes for the sender to fill. Attach the generation with
// WithOwnership.
func (s *Service) AllocateChannelBlock(channelID uint64) (index int, generation uint64, block []byte, err error) {
	const op = "ipc.AllocateChannelBlock"

	pool, err := s.channelPool(op, channelID)
	if err != nil {
		return 0, 0, nil, err
	}
	index, ok := pool.Allocate()
	if !ok {
		return 0, 0, nil, ipcerr.New(op, ipcerr.KindCapacityExceeded, "pool of channel %d is exhausted", channelID)
	}
	block, _ = pool.BlockPtr(index)
	return index, pool.Generation(index), block, nil
}

// FreeChannelBlock returns a block to a channel's own pool
func (s *Service) FreeChannelBlock(channelID uint64, index int) error {
	pool, err := s.channelPool("ipc.FreeChannelBlock", channelID)
	if err != nil {
		return err
	}
	return pool.Deallocate(index)
}

func (s *Service) channelPool(op string, channelID uint64) (*memory.MemoryPool, error) {
	ch, err := s.channel(op, channelID)
	if err != nil {
		return nil, err
	}
	pool := ch.Pool()
	if pool == nil {
		return nil, ipcerr.New(op, ipcerr.KindNotFound, "channel %d has no memory pool", channelID)
	}
	return pool, nil
}

// ResolvePayload returns the bytes a message carries or references. Pool
// references resolve against the pool of the channel the message travelled
// on and are refused once the block was freed or handed out again.
func (s *Service) ResolvePayload(channelID uint64, msg message.Message) ([]byte, error) {
	const op = "ipc.ResolvePayload"

	p := msg.Payload
	switch p.Kind() {
	case message.PayloadNone:
		return nil, nil
	case message.PayloadInline:
		return p.Data(), nil
	case message.PayloadPointer:
		return nil, ipcerr.New(op, ipcerr.KindUnsupported, "raw address payloads cannot be resolved")
	case message.PayloadRegion:
		regionID, offset, length, _ := p.Region()
		region, ok := s.SharedMemory(regionID)
		if !ok {
			return nil, ipcerr.New(op, ipcerr.KindNotFound, "region %d", regionID)
		}
		return region.Slice(offset, length)
	case message.PayloadPool:
		pool, err := s.channelPool(op, channelID)
		if err != nil {
			return nil, err
		}
		index, length, _ := p.Pool()
		block, ok := pool.BlockPtr(index)
		if !ok {
			return nil, ipcerr.New(op, ipcerr.KindInvalidIndex, "block %d is not allocated", index)
		}
		if token := p.Token(); token != 0 && pool.Generation(index) != token {
			return nil, ipcerr.New(op, ipcerr.KindInvalidIndex, "block %d was reused (generation %d, message holds %d)",
				index, pool.Generation(index), token)
		}
		if length < 0 || length > len(block) {
			return nil, ipcerr.New(op, ipcerr.KindInvalidArgument, "length %d exceeds block size %d", length, len(block))
		}
		return block[:length], nil
	default:
		return nil, ipcerr.New(op, ipcerr.KindInvalidArgument, "unknown payload kind %s", p.Kind())
	}
}
