// Package message defines the IPC data unit.
//
// A Message is a value built with New and the With* builders. Its payload is
// exactly one of:
//   - inline bytes (copied through the channel)
//   - a raw address and length
//   - a shared-memory region id, offset and length
//   - a memory-pool block index and length
//
// The last three are zero-copy references: only the reference crosses the
// channel. A message never owns the memory it references; the service that
// owns the region or pool governs its lifetime. References may carry an
// ownership token (the pool block generation) so a receiver can detect a
// block that was reclaimed and reused after the message was sent.
//
// Example Usage:
//
//	msg := message.New(senderID, receiverID, message.KindData).
//	    WithPriority(5).
//	    WithTransport(message.TransportLockFreeQueue).
//	    WithData([]byte("hello"))
package message

import (
	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/clock"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/id"
)

// HeaderSize is the fixed per-message overhead counted by Size
const HeaderSize = 64

// PayloadKind identifies which payload representation is set
type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	PayloadInline
	PayloadPointer
	PayloadRegion
	PayloadPool
)

// String returns the string representation of the payload kind
func (k PayloadKind) String() string {
	switch k {
	case PayloadInline:
		return "inline"
	case PayloadPointer:
		return "pointer"
	case PayloadRegion:
		return "region"
	case PayloadPool:
		return "pool"
	default:
		return "none"
	}
}

// Payload holds at most one payload representation. Its fields are only
// reachable through the Message builders, so two representations can never
// be set at once.
type Payload struct {
	kind   PayloadKind
	data   []byte
	addr   uintptr
	region uint64
	offset int
	index  int
	length int
	token  uint64
}

// Kind returns which representation is set
func (p Payload) Kind() PayloadKind { return p.kind }

// Len returns the payload length in bytes, including referenced lengths
func (p Payload) Len() int { return p.length }

// Data returns the inline bytes, or nil for any other representation
func (p Payload) Data() []byte {
	if p.kind != PayloadInline {
		return nil
	}
	return p.data
}

// Pointer returns the raw address reference
func (p Payload) Pointer() (addr uintptr, length int, ok bool) {
	if p.kind != PayloadPointer {
		return 0, 0, false
	}
	return p.addr, p.length, true
}

// Region returns the shared-memory reference
func (p Payload) Region() (regionID uint64, offset, length int, ok bool) {
	if p.kind != PayloadRegion {
		return 0, 0, 0, false
	}
	return p.region, p.offset, p.length, true
}

// Pool returns the memory-pool block reference
func (p Payload) Pool() (index, length int, ok bool) {
	if p.kind != PayloadPool {
		return 0, 0, false
	}
	return p.index, p.length, true
}

// Token returns the ownership token of a zero-copy reference, 0 if untracked
func (p Payload) Token() uint64 { return p.token }

// Message is the IPC data unit
type Message struct {
	ID         uint64
	SenderID   uint64
	ReceiverID uint64 // 0 addresses any receiver
	Kind       Kind
	Priority   uint8
	Transport  Transport
	Mode       Mode
	Payload    Payload
	Timestamp  uint64
	Timeout    uint64 // nanoseconds, 0 for none
	Flags      uint32
	BatchID    uint64 // 0 when not part of a batch
}

// New creates a message with the next global id and default priority,
// transport and mode, stamped by the system clock.
func New(senderID, receiverID uint64, kind Kind) Message {
	return NewAt(clock.System(), senderID, receiverID, kind)
}

// NewAt is New with the timestamp read from c
func NewAt(c clock.Clock, senderID, receiverID uint64, kind Kind) Message {
	return Message{
		ID:         id.NextMessageID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Kind:       kind,
		Priority:   0,
		Transport:  TransportOrderedQueue,
		Mode:       ModeSynchronous,
		Timestamp:  c.Now(),
	}
}

// WithPriority sets the priority; higher values dequeue first
func (m Message) WithPriority(priority uint8) Message {
	m.Priority = priority
	return m
}

// WithTransport sets the requested transport
func (m Message) WithTransport(t Transport) Message {
	m.Transport = t
	return m
}

// WithMode sets the communication mode
func (m Message) WithMode(mode Mode) Message {
	m.Mode = mode
	return m
}

// WithData sets an inline payload
func (m Message) WithData(data []byte) Message {
	m.Payload = Payload{kind: PayloadInline, data: data, length: len(data)}
	return m
}

// WithZeroCopyData sets a raw address payload and switches to zero-copy mode
func (m Message) WithZeroCopyData(addr uintptr, length int) Message {
	m.Payload = Payload{kind: PayloadPointer, addr: addr, length: length}
	m.Mode = ModeZeroCopy
	return m
}

// WithSharedMemory references bytes inside a shared-memory region
func (m Message) WithSharedMemory(regionID uint64, offset, length int) Message {
	m.Payload = Payload{kind: PayloadRegion, region: regionID, offset: offset, length: length}
	m.Transport = TransportSharedMemory
	return m
}

// WithMemoryPool references a memory-pool block
func (m Message) WithMemoryPool(index, length int) Message {
	m.Payload = Payload{kind: PayloadPool, index: index, length: length}
	m.Transport = TransportMemoryPool
	return m
}

// WithOwnership attaches an ownership token to a zero-copy reference.
// It has no effect on inline or empty payloads.
func (m Message) WithOwnership(token uint64) Message {
	if m.IsZeroCopy() {
		m.Payload.token = token
	}
	return m
}

// WithTimeout sets the delivery timeout in nanoseconds
func (m Message) WithTimeout(ns uint64) Message {
	m.Timeout = ns
	return m
}

// WithFlags sets the message flags
func (m Message) WithFlags(flags uint32) Message {
	m.Flags = flags
	return m
}

// WithBatchID tags the message as part of a batch
func (m Message) WithBatchID(batchID uint64) Message {
	m.BatchID = batchID
	m.Mode = ModeBatch
	return m
}

// Size returns the header size plus the bytes that travel with the message.
// Region and pool references contribute nothing.
func (m Message) Size() int {
	switch m.Payload.kind {
	case PayloadInline, PayloadPointer:
		return HeaderSize + m.Payload.length
	default:
		return HeaderSize
	}
}

// IsZeroCopy reports whether the payload is a pointer, region or pool reference
func (m Message) IsZeroCopy() bool {
	switch m.Payload.kind {
	case PayloadPointer, PayloadRegion, PayloadPool:
		return true
	default:
		return false
	}
}

// IsHighPerformance reports whether the transport is one of the zero-lock
// or zero-copy back-ends
func (m Message) IsHighPerformance() bool {
	switch m.Transport {
	case TransportSharedMemory, TransportMemoryPool, TransportLockFreeQueue:
		return true
	default:
		return false
	}
}

// RequiresMemoryManagement reports whether the payload references memory
// owned by a region or pool
func (m Message) RequiresMemoryManagement() bool {
	return m.Payload.kind == PayloadRegion || m.Payload.kind == PayloadPool
}

// HasBatch reports whether the message belongs to a batch
func (m Message) HasBatch() bool {
	return m.BatchID != 0
}
