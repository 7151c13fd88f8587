package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
)

func TestHeapProviderLimit(t *testing.T) {
	p := NewHeapProvider(100)

	buf, err := p.Allocate(60)
	require.NoError(t, err)
	assert.Len(t, buf, 60)
	assert.Equal(t, int64(60), p.Used())

	_, err = p.Allocate(50)
	assert.ErrorIs(t, err, ErrProviderExhausted)

	require.NoError(t, p.Free(buf))
	assert.Equal(t, int64(0), p.Used())

	_, err = p.Allocate(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMemoryPoolScenario(t *testing.T) {
	pool, err := NewMemoryPool(NewHeapProvider(0), 256, 2)
	require.NoError(t, err)

	a, ok := pool.Allocate()
	require.True(t, ok)
	assert.Equal(t, 0, a)

	b, ok := pool.Allocate()
	require.True(t, ok)
	assert.Equal(t, 1, b)

	_, ok = pool.Allocate()
	assert.False(t, ok, "pool exhausted")

	require.NoError(t, pool.Deallocate(0))

	c, ok := pool.Allocate()
	require.True(t, ok)
	assert.Equal(t, 0, c)
}

func TestMemoryPoolErrors(t *testing.T) {
	pool, err := NewMemoryPool(NewHeapProvider(0), 64, 4)
	require.NoError(t, err)

	idx, ok := pool.Allocate()
	require.True(t, ok)
	require.NoError(t, pool.Deallocate(idx))

	err = pool.Deallocate(idx)
	assert.ErrorIs(t, err, ipcerr.ErrDoubleFree)

	err = pool.Deallocate(4)
	assert.ErrorIs(t, err, ipcerr.ErrInvalidIndex)

	err = pool.Deallocate(-1)
	assert.ErrorIs(t, err, ipcerr.ErrInvalidIndex)
}

func TestNewMemoryPoolValidation(t *testing.T) {
	tests := []struct {
		name      string
		provider  Provider
		blockSize int
		capacity  int
		kind      ipcerr.Kind
	}{
		{"zero block size", NewHeapProvider(0), 0, 4, ipcerr.KindInvalidArgument},
		{"zero capacity", NewHeapProvider(0), 64, 0, ipcerr.KindInvalidArgument},
		{"provider exhausted", NewHeapProvider(100), 64, 4, ipcerr.KindOutOfMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMemoryPool(tt.provider, tt.blockSize, tt.capacity)
			require.Error(t, err)
			assert.Equal(t, tt.kind, ipcerr.KindOf(err))
		})
	}
}

func TestMemoryPoolBlocksAndGenerations(t *testing.T) {
	pool, err := NewMemoryPool(NewHeapProvider(0), 16, 2)
	require.NoError(t, err)

	_, ok := pool.BlockPtr(0)
	assert.False(t, ok, "free block has no pointer")
	assert.Equal(t, uint64(0), pool.Generation(0))

	idx, _ := pool.Allocate()
	blk, ok := pool.BlockPtr(idx)
	require.True(t, ok)
	assert.Len(t, blk, 16)
	assert.Equal(t, 16, cap(blk))
	copy(blk, "payload")
	assert.Equal(t, uint64(1), pool.Generation(idx))
	assert.True(t, pool.IsAllocated(idx))

	other, _ := pool.Allocate()
	otherBlk, _ := pool.BlockPtr(other)
	assert.Equal(t, make([]byte, 16), otherBlk, "blocks do not overlap")

	require.NoError(t, pool.Deallocate(idx))
	again, _ := pool.Allocate()
	assert.Equal(t, idx, again)
	assert.Equal(t, uint64(2), pool.Generation(idx))

	used, capacity := pool.Usage()
	assert.Equal(t, 2, used)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 16, pool.BlockSize())
	assert.Equal(t, 2, pool.Capacity())
}

func TestMemoryPoolConcurrentNetZero(t *testing.T) {
	pool, err := NewMemoryPool(NewHeapProvider(0), 32, 64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var failures sync.Map
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				idx, ok := pool.Allocate()
				if !ok {
					continue
				}
				if err := pool.Deallocate(idx); err != nil {
					failures.Store(g, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	failures.Range(func(k, v any) bool {
		t.Errorf("goroutine %v: %v", k, v)
		return true
	})

	used, _ := pool.Usage()
	assert.Equal(t, 0, used)

	// Every block is reachable again after the churn
	seen := make(map[int]bool)
	for {
		idx, ok := pool.Allocate()
		if !ok {
			break
		}
		assert.False(t, seen[idx])
		seen[idx] = true
	}
	assert.Len(t, seen, 64)
}

func TestMemoryPoolClose(t *testing.T) {
	provider := NewHeapProvider(0)
	pool, err := NewMemoryPool(provider, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(64), provider.Used())

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	assert.Equal(t, int64(0), provider.Used())

	_, ok := pool.Allocate()
	assert.False(t, ok)
}

func TestSharedMemoryRegionLifecycle(t *testing.T) {
	provider := NewHeapProvider(0)
	region, err := NewSharedMemoryRegion(provider, 7, 1024, DefaultPermissions)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), region.ID())
	assert.Equal(t, 1024, region.Size())
	assert.Equal(t, uint32(0o666), region.Permissions())
	assert.Equal(t, uint64(1), region.RefCount())

	assert.Equal(t, uint64(2), region.AddRef())
	refs, err := region.Release()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), refs)
	assert.Equal(t, int64(1024), provider.Used())

	refs, err = region.Release()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), refs)
	assert.Equal(t, int64(0), provider.Used())

	refs, err = region.Release()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), refs, "over-release is a no-op")
	assert.Equal(t, uint64(0), region.AddRef(), "released region stays released")

	_, err = region.Slice(0, 1)
	assert.ErrorIs(t, err, ipcerr.ErrInvalidArgument)
}

func TestSharedMemoryRegionSlice(t *testing.T) {
	region, err := NewSharedMemoryRegion(NewHeapProvider(0), 1, 100, DefaultPermissions)
	require.NoError(t, err)

	s, err := region.Slice(10, 20)
	require.NoError(t, err)
	copy(s, "zero-copy")

	again, err := region.Slice(10, 9)
	require.NoError(t, err)
	assert.Equal(t, "zero-copy", string(again))

	_, err = region.Slice(90, 20)
	assert.ErrorIs(t, err, ipcerr.ErrInvalidArgument)

	_, err = region.Slice(-1, 5)
	assert.ErrorIs(t, err, ipcerr.ErrInvalidArgument)

	full, err := region.Slice(0, 100)
	require.NoError(t, err)
	assert.Len(t, full, 100)
}

func TestNewSharedMemoryRegionErrors(t *testing.T) {
	_, err := NewSharedMemoryRegion(NewHeapProvider(0), 1, 0, DefaultPermissions)
	assert.ErrorIs(t, err, ipcerr.ErrInvalidArgument)

	_, err = NewSharedMemoryRegion(NewHeapProvider(10), 1, 100, DefaultPermissions)
	assert.ErrorIs(t, err, ipcerr.ErrOutOfMemory)
	assert.True(t, errors.Is(err, ErrProviderExhausted))
}

// failingFreeProvider allocates from the heap but refuses every Free
type failingFreeProvider struct {
	*HeapProvider
}

var errFreeRefused = errors.New("free refused")

func (failingFreeProvider) Free([]byte) error { return errFreeRefused }

func TestSharedMemoryRegionReleaseReportsProviderError(t *testing.T) {
	region, err := NewSharedMemoryRegion(failingFreeProvider{NewHeapProvider(0)}, 3, 64, DefaultPermissions)
	require.NoError(t, err)
	region.AddRef()

	refs, err := region.Release()
	require.NoError(t, err, "provider untouched while references remain")
	assert.Equal(t, uint64(1), refs)

	refs, err = region.Release()
	assert.ErrorIs(t, err, errFreeRefused)
	assert.Zero(t, refs)
	assert.Zero(t, region.RefCount(), "region stays released")

	refs, err = region.Release()
	assert.NoError(t, err)
	assert.Zero(t, refs)
}
