package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
)

// DefaultPermissions is the mode given to regions created without one
const DefaultPermissions uint32 = 0o666

// SharedMemoryRegion is a reference-counted buffer shared between the
// sender and receivers of zero-copy messages
type SharedMemoryRegion struct {
	id       uint64
	data     []byte
	perms    uint32
	refs     atomic.Int64
	provider Provider
}

// NewSharedMemoryRegion allocates size bytes from provider with a
// reference count of 1
func NewSharedMemoryRegion(provider Provider, id uint64, size int, perms uint32) (*SharedMemoryRegion, error) {
	const op = "memory.NewSharedMemoryRegion"

	if size <= 0 {
		return nil, ipcerr.New(op, ipcerr.KindInvalidArgument, "size %d", size)
	}

	data, err := provider.Allocate(size)
	if err != nil {
		return nil, ipcerr.Wrap(op, ipcerr.KindOutOfMemory, err)
	}

	r := &SharedMemoryRegion{
		id:       id,
		data:     data,
		perms:    perms,
		provider: provider,
	}
	r.refs.Store(1)
	return r, nil
}

// ID returns the region id
func (r *SharedMemoryRegion) ID() uint64 { return r.id }

// Size returns the region size in bytes
func (r *SharedMemoryRegion) Size() int { return len(r.data) }

// Permissions returns the region's permission bits
func (r *SharedMemoryRegion) Permissions() uint32 { return r.perms }

// RefCount returns the current reference count
func (r *SharedMemoryRegion) RefCount() uint64 {
	return uint64(r.refs.Load())
}

// AddRef takes another reference and returns the new count. A released
// region cannot be revived; AddRef on it returns 0.
func (r *SharedMemoryRegion) AddRef() uint64 {
	for {
		n := r.refs.Load()
		if n == 0 {
			return 0
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return uint64(n + 1)
		}
	}
}

// Release drops a reference and returns the remaining count. The backing
// memory goes back to the provider when the count reaches 0; a provider
// failure is returned, and the region stays released either way.
func (r *SharedMemoryRegion) Release() (uint64, error) {
	for {
		n := r.refs.Load()
		if n == 0 {
			return 0, nil
		}
		if r.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				if err := r.provider.Free(r.data); err != nil {
					return 0, fmt.Errorf("free region %d: %w", r.id, err)
				}
			}
			return uint64(n - 1), nil
		}
	}
}

// Slice returns length bytes starting at offset
func (r *SharedMemoryRegion) Slice(offset, length int) ([]byte, error) {
	const op = "memory.Slice"

	if r.refs.Load() == 0 {
		return nil, ipcerr.New(op, ipcerr.KindInvalidArgument, "region %d released", r.id)
	}
	if offset < 0 || length < 0 || offset > len(r.data)-length {
		return nil, ipcerr.New(op, ipcerr.KindInvalidArgument,
			"range [%d, %d+%d) outside region of %d bytes", offset, offset, length, len(r.data))
	}
	end := offset + length
	return r.data[offset:end:end], nil
}
