package message

import (
	"fmt"
	"strings"
)

// Kind is the message category
type Kind uint8

const (
	KindData Kind = iota
	KindControl
	KindRequest
	KindResponse
	KindEvent
	KindStream
	KindBatch
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindControl:
		return "control"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	case KindStream:
		return "stream"
	case KindBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name to a Kind
func ParseKind(s string) (Kind, error) {
	for k := KindData; k <= KindBatch; k++ {
		if strings.EqualFold(strings.TrimSpace(s), k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown message kind: %q", s)
}

// Transport selects the channel back-end that carries a message
type Transport uint8

const (
	TransportOrderedQueue Transport = iota
	TransportLockFreeQueue
	TransportSharedMemory
	TransportMemoryPool
	// Declared for completeness; no back-end implements these.
	TransportPipe
	TransportSocket
	TransportEventFd
	TransportSignal
)

// Transports lists every declared transport in declaration order
var Transports = []Transport{
	TransportOrderedQueue,
	TransportLockFreeQueue,
	TransportSharedMemory,
	TransportMemoryPool,
	TransportPipe,
	TransportSocket,
	TransportEventFd,
	TransportSignal,
}

// String returns the string representation of the transport
func (t Transport) String() string {
	switch t {
	case TransportOrderedQueue:
		return "ordered_queue"
	case TransportLockFreeQueue:
		return "lock_free_queue"
	case TransportSharedMemory:
		return "shared_memory"
	case TransportMemoryPool:
		return "memory_pool"
	case TransportPipe:
		return "pipe"
	case TransportSocket:
		return "socket"
	case TransportEventFd:
		return "eventfd"
	case TransportSignal:
		return "signal"
	default:
		return "unknown"
	}
}

// Implemented reports whether a channel back-end exists for t
func (t Transport) Implemented() bool {
	switch t {
	case TransportOrderedQueue, TransportLockFreeQueue, TransportSharedMemory, TransportMemoryPool:
		return true
	default:
		return false
	}
}

// ParseTransport converts a transport name to a Transport
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ordered_queue", "ordered", "message_queue", "queue":
		return TransportOrderedQueue, nil
	case "lock_free_queue", "lockfree", "lock_free":
		return TransportLockFreeQueue, nil
	case "shared_memory", "shm":
		return TransportSharedMemory, nil
	case "memory_pool", "pool":
		return TransportMemoryPool, nil
	case "pipe":
		return TransportPipe, nil
	case "socket":
		return TransportSocket, nil
	case "eventfd", "event_fd":
		return TransportEventFd, nil
	case "signal":
		return TransportSignal, nil
	default:
		return 0, fmt.Errorf("unknown transport: %q", s)
	}
}

// Mode is the communication mode requested by the sender
type Mode uint8

const (
	ModeSynchronous Mode = iota
	ModeAsynchronous
	ModeStreaming
	ModeZeroCopy
	ModeBatch
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeSynchronous:
		return "synchronous"
	case ModeAsynchronous:
		return "asynchronous"
	case ModeStreaming:
		return "streaming"
	case ModeZeroCopy:
		return "zero_copy"
	case ModeBatch:
		return "batch"
	default:
		return "unknown"
	}
}
