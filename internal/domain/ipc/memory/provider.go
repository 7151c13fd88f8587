// Package memory provides the zero-copy backing stores used by channels:
// fixed-block memory pools and reference-counted shared-memory regions.
//
// Both obtain their bytes from a Provider, the boundary to whatever physical
// memory manager the host offers. HeapProvider is the in-process
// implementation backed by the Go heap.
package memory

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	ErrProviderExhausted = errors.New("memory provider exhausted")
	ErrInvalidSize       = errors.New("invalid allocation size")
)

// Provider supplies and reclaims raw memory
type Provider interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte) error
}

// HeapProvider allocates from the Go heap, optionally capped at a byte limit
type HeapProvider struct {
	limit int64 // 0 means unlimited
	used  atomic.Int64
}

// NewHeapProvider creates a provider that refuses to hand out more than
// limit bytes at once. A limit of 0 disables the cap.
func NewHeapProvider(limit int64) *HeapProvider {
	return &HeapProvider{limit: limit}
}

// Allocate returns a zeroed buffer of size bytes
func (p *HeapProvider) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	n := int64(size)
	if p.limit > 0 {
		for {
			used := p.used.Load()
			if used+n > p.limit {
				return nil, fmt.Errorf("%w: requested %d, %d of %d in use", ErrProviderExhausted, size, used, p.limit)
			}
			if p.used.CompareAndSwap(used, used+n) {
				break
			}
		}
	} else {
		p.used.Add(n)
	}
	return make([]byte, size), nil
}

// Free returns a buffer previously obtained from Allocate
func (p *HeapProvider) Free(buf []byte) error {
	p.used.Add(-int64(len(buf)))
	return nil
}

// Used returns the bytes currently handed out
func (p *HeapProvider) Used() int64 {
	return p.used.Load()
}

// Limit returns the configured cap, 0 if unlimited
func (p *HeapProvider) Limit() int64 {
	return p.limit
}
