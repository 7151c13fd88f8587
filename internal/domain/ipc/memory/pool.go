package memory

import (
	"math"
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
)

// MemoryPool hands out fixed-size blocks carved from a single slab.
//
// Free blocks form a lock-free stack. The stack head packs a modification
// tag in the upper 32 bits and index+1 in the lower 32 bits (0 = empty),
// so a pop racing a pop-then-push of the same index fails its CAS.
type MemoryPool struct {
	provider  Provider
	slab      []byte
	blockSize int
	capacity  int

	head   atomic.Uint64
	next   []atomic.Uint32 // index+1 of the block below, 0 at the bottom
	inUse  []atomic.Bool
	gen    []atomic.Uint64
	used   atomic.Int64
	closed atomic.Bool
}

// NewMemoryPool allocates capacity blocks of blockSize bytes from provider
func NewMemoryPool(provider Provider, blockSize, capacity int) (*MemoryPool, error) {
	const op = "memory.NewMemoryPool"

	if blockSize <= 0 || capacity <= 0 {
		return nil, ipcerr.New(op, ipcerr.KindInvalidArgument, "block size %d, capacity %d", blockSize, capacity)
	}
	if uint64(capacity) >= math.MaxUint32 || blockSize > math.MaxInt/capacity {
		return nil, ipcerr.New(op, ipcerr.KindInvalidArgument, "pool too large: %d x %d", capacity, blockSize)
	}

	slab, err := provider.Allocate(blockSize * capacity)
	if err != nil {
		return nil, ipcerr.Wrap(op, ipcerr.KindOutOfMemory, err)
	}

	p := &MemoryPool{
		provider:  provider,
		slab:      slab,
		blockSize: blockSize,
		capacity:  capacity,
		next:      make([]atomic.Uint32, capacity),
		inUse:     make([]atomic.Bool, capacity),
		gen:       make([]atomic.Uint64, capacity),
	}

	// Block 0 on top, then 1, 2, ...
	for i := 0; i < capacity-1; i++ {
		p.next[i].Store(uint32(i + 2))
	}
	p.head.Store(1)

	return p, nil
}

// Allocate pops a free block. ok is false when the pool is exhausted.
func (p *MemoryPool) Allocate() (index int, ok bool) {
	if p.closed.Load() {
		return 0, false
	}
	for {
		h := p.head.Load()
		top := uint32(h)
		if top == 0 {
			return 0, false
		}
		idx := top - 1
		below := p.next[idx].Load()
		if p.head.CompareAndSwap(h, packHead(h, below)) {
			p.inUse[idx].Store(true)
			p.gen[idx].Add(1)
			p.used.Add(1)
			return int(idx), true
		}
	}
}

// Deallocate returns a block to the pool
func (p *MemoryPool) Deallocate(index int) error {
	const op = "memory.Deallocate"

	if index < 0 || index >= p.capacity {
		return ipcerr.New(op, ipcerr.KindInvalidIndex, "index %d outside [0, %d)", index, p.capacity)
	}
	if !p.inUse[index].CompareAndSwap(true, false) {
		return ipcerr.New(op, ipcerr.KindDoubleFree, "block %d is not allocated", index)
	}
	p.used.Add(-1)

	for {
		h := p.head.Load()
		p.next[index].Store(uint32(h))
		if p.head.CompareAndSwap(h, packHead(h, uint32(index+1))) {
			return nil
		}
	}
}

func packHead(prev uint64, top uint32) uint64 {
	tag := (prev >> 32) + 1
	return tag<<32 | uint64(top)
}

// BlockPtr returns the bytes of an allocated block
func (p *MemoryPool) BlockPtr(index int) ([]byte, bool) {
	if index < 0 || index >= p.capacity || !p.inUse[index].Load() {
		return nil, false
	}
	start := index * p.blockSize
	end := start + p.blockSize
	return p.slab[start:end:end], true
}

// IsAllocated reports whether a block is currently handed out
func (p *MemoryPool) IsAllocated(index int) bool {
	return index >= 0 && index < p.capacity && p.inUse[index].Load()
}

// Generation returns how many times the block has been allocated.
// It is 0 for an index outside the pool.
func (p *MemoryPool) Generation(index int) uint64 {
	if index < 0 || index >= p.capacity {
		return 0
	}
	return p.gen[index].Load()
}

// Usage returns the number of allocated blocks and the pool capacity
func (p *MemoryPool) Usage() (used, capacity int) {
	return int(p.used.Load()), p.capacity
}

// BlockSize returns the size of each block in bytes
func (p *MemoryPool) BlockSize() int { return p.blockSize }

// Capacity returns the number of blocks
func (p *MemoryPool) Capacity() int { return p.capacity }

// Close returns the slab to the provider. Further allocations fail.
func (p *MemoryPool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.provider.Free(p.slab)
}
