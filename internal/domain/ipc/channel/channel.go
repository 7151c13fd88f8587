// Package channel implements the IPC channel: a bounded mailbox with four
// interchangeable back-ends.
//
// Every channel carries three queues and up to two zero-copy stores:
//   - a priority queue, ordered by descending priority with ties in send order
//   - a plain queue used by broadcast and pub/sub channels
//   - a lock-free MPSC queue for LockFreeQueue messages
//   - an optional shared-memory region and memory pool, referenced by
//     SharedMemory and MemoryPool messages
//
// A single message-count bound applies across all of them. Senders reserve a
// slot before enqueueing, so the count never exceeds the bound even under
// concurrent sends.
package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/memory"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/queue"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/clock"
)

// DefaultBatchThreshold is the batch length at or below which a lock-free
// channel sends a batch message by message
const DefaultBatchThreshold = 4

// Config describes a channel
type Config struct {
	ID               uint64
	Name             string
	Type             Type
	MaxMessages      int
	DefaultTransport message.Transport
	BatchThreshold   int
	Region           *memory.SharedMemoryRegion
	Pool             *memory.MemoryPool
	Clock            clock.Clock
}

// Channel is a bounded, multi-transport message queue
type Channel struct {
	id               uint64
	name             string
	typ              Type
	maxMessages      int64
	defaultTransport message.Transport
	batchThreshold   int
	region           *memory.SharedMemoryRegion
	pool             *memory.MemoryPool
	clock            clock.Clock

	mu       sync.Mutex
	priority []message.Message
	plain    []message.Message

	lockFree *queue.LockFreeQueue[message.Message]
	// consumerMu serializes pops from the lock-free queue and guards pending,
	// which holds lock-free messages a filtered batch drain set aside
	consumerMu sync.Mutex
	consumer   *queue.Consumer[message.Message]
	pending    []message.Message

	// life is held shared by senders and exclusively by Close, so no send
	// lands after Close drains the queues
	life   sync.RWMutex
	count  atomic.Int64
	closed atomic.Bool

	waiters atomic.Int32
	waitMu  sync.Mutex
	wake    chan struct{}

	stats stats
}

// New creates a channel
func New(cfg Config) *Channel {
	if cfg.BatchThreshold <= 0 {
		cfg.BatchThreshold = DefaultBatchThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}

	lf := queue.NewLockFreeQueue[message.Message]()
	consumer, _ := lf.Consumer()

	return &Channel{
		id:               cfg.ID,
		name:             cfg.Name,
		typ:              cfg.Type,
		maxMessages:      int64(cfg.MaxMessages),
		defaultTransport: cfg.DefaultTransport,
		batchThreshold:   cfg.BatchThreshold,
		region:           cfg.Region,
		pool:             cfg.Pool,
		clock:            cfg.Clock,
		lockFree:         lf,
		consumer:         consumer,
		wake:             make(chan struct{}),
	}
}

// ID returns the channel id
func (c *Channel) ID() uint64 { return c.id }

// Name returns the channel name
func (c *Channel) Name() string { return c.name }

// Type returns the channel type
func (c *Channel) Type() Type { return c.typ }

// MaxMessages returns the message bound
func (c *Channel) MaxMessages() int { return int(c.maxMessages) }

// DefaultTransport returns the transport used when a message's own cannot be honored
func (c *Channel) DefaultTransport() message.Transport { return c.defaultTransport }

// Region returns the channel's shared-memory region, if any
func (c *Channel) Region() *memory.SharedMemoryRegion { return c.region }

// Pool returns the channel's memory pool, if any
func (c *Channel) Pool() *memory.MemoryPool { return c.pool }

// Count returns the number of queued messages
func (c *Channel) Count() int { return int(c.count.Load()) }

// IsFull reports whether a send would exceed the bound
func (c *Channel) IsFull() bool { return c.count.Load() >= c.maxMessages }

// IsEmpty reports whether nothing is queued
func (c *Channel) IsEmpty() bool { return c.count.Load() == 0 }

// Stats returns a snapshot of the channel statistics
func (c *Channel) Stats() StatsSnapshot { return c.stats.snapshot() }

// reserve claims n message slots, failing when that would pass the bound
func (c *Channel) reserve(n int64) bool {
	for {
		cur := c.count.Load()
		if cur+n > c.maxMessages {
			return false
		}
		if c.count.CompareAndSwap(cur, cur+n) {
			return true
		}
	}
}

func (c *Channel) errClosed(op string) error {
	return ipcerr.New(op, ipcerr.KindNotFound, "channel %d closed", c.id)
}

func (c *Channel) errFull(op string) error {
	return ipcerr.New(op, ipcerr.KindCapacityExceeded, "channel %d holds %d of %d", c.id, c.count.Load(), c.maxMessages)
}

// Send enqueues a message. A message without a timestamp is stamped with
// the channel clock.
func (c *Channel) Send(msg message.Message) error {
	c.life.RLock()
	defer c.life.RUnlock()
	return c.send("channel.Send", msg)
}

// send requires c.life held shared
func (c *Channel) send(op string, msg message.Message) error {
	if c.closed.Load() {
		return c.errClosed(op)
	}
	start := c.clock.Now()
	if msg.Timestamp == 0 {
		msg.Timestamp = start
	}
	if !c.reserve(1) {
		c.stats.errors.Add(1)
		return c.errFull(op)
	}

	c.dispatch(msg, true)

	c.stats.recordSend(uint64(msg.Size()), clock.Since(c.clock, start))
	c.notify()
	return nil
}

// dispatch places a message whose slot is already reserved
func (c *Channel) dispatch(msg message.Message, retry bool) {
	switch msg.Transport {
	case message.TransportLockFreeQueue:
		c.lockFree.Push(msg)
		return
	case message.TransportSharedMemory:
		if msg.Payload.Kind() == message.PayloadRegion {
			c.pushPriority(msg)
			return
		}
	case message.TransportMemoryPool:
		if msg.Payload.Kind() == message.PayloadPool {
			c.pushPriority(msg)
			return
		}
	default:
		c.dispatchByType(msg)
		return
	}

	// A zero-copy transport without its reference falls back to the default
	// transport once
	if retry && c.defaultTransport != msg.Transport {
		msg.Transport = c.defaultTransport
		c.dispatch(msg, false)
		return
	}
	c.dispatchByType(msg)
}

func (c *Channel) dispatchByType(msg message.Message) {
	if c.typ.fanOut() {
		c.mu.Lock()
		c.plain = append(c.plain, msg)
		c.mu.Unlock()
		return
	}
	c.pushPriority(msg)
}

// pushPriority inserts after every message of equal or higher priority
func (c *Channel) pushPriority(msg message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := len(c.priority)
	for i, m := range c.priority {
		if m.Priority < msg.Priority {
			pos = i
			break
		}
	}
	c.priority = append(c.priority, message.Message{})
	copy(c.priority[pos+1:], c.priority[pos:])
	c.priority[pos] = msg
}

// SendOptimized sends inline data on the channel's default transport
func (c *Channel) SendOptimized(senderID, receiverID uint64, data []byte) error {
	msg := message.NewAt(c.clock, senderID, receiverID, message.KindData).
		WithTransport(c.defaultTransport).
		WithData(data)
	return c.Send(msg)
}

// SendZeroCopy sends a raw address reference
func (c *Channel) SendZeroCopy(senderID, receiverID uint64, addr uintptr, length int) error {
	msg := message.NewAt(c.clock, senderID, receiverID, message.KindData).
		WithZeroCopyData(addr, length)
	return c.Send(msg)
}

// Receive dequeues the next message for receiverID. It returns a
// WouldBlock error when nothing is available.
func (c *Channel) Receive(receiverID uint64) (message.Message, error) {
	const op = "channel.Receive"

	msg, ok := c.receiveOne(receiverID, true)
	if !ok {
		if c.closed.Load() {
			return message.Message{}, c.errClosed(op)
		}
		return message.Message{}, ipcerr.New(op, ipcerr.KindWouldBlock, "")
	}
	return msg, nil
}

// TryReceive is Receive without the error
func (c *Channel) TryReceive(receiverID uint64) (message.Message, bool) {
	return c.receiveOne(receiverID, true)
}

func (c *Channel) receiveOne(receiverID uint64, record bool) (message.Message, bool) {
	msg, ok := c.popLockFree()
	if !ok {
		msg, ok = c.popQueued(receiverID)
	}
	if !ok {
		return message.Message{}, false
	}

	c.count.Add(-1)
	if record {
		c.stats.recordReceive(1, uint64(msg.Size()))
	}
	return msg, true
}

// popLockFree takes parked messages first, then the lock-free queue
func (c *Channel) popLockFree() (message.Message, bool) {
	c.consumerMu.Lock()
	defer c.consumerMu.Unlock()

	if len(c.pending) > 0 {
		msg := c.pending[0]
		c.pending[0] = message.Message{}
		c.pending = c.pending[1:]
		return msg, true
	}
	return c.consumer.Pop()
}

func (c *Channel) popQueued(receiverID uint64) (message.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.typ == TypePointToPoint {
		for i, m := range c.priority {
			if m.ReceiverID == receiverID || m.ReceiverID == 0 {
				c.priority = append(c.priority[:i], c.priority[i+1:]...)
				return m, true
			}
		}
		return message.Message{}, false
	}

	// Other types pop the most recently appended plain message first
	if n := len(c.plain); n > 0 {
		msg := c.plain[n-1]
		c.plain[n-1] = message.Message{}
		c.plain = c.plain[:n-1]
		return msg, true
	}
	if len(c.priority) > 0 {
		msg := c.priority[0]
		c.priority[0] = message.Message{}
		c.priority = c.priority[1:]
		return msg, true
	}
	return message.Message{}, false
}

// ReceiveTimeout waits up to timeout for a message. It returns a Timeout
// error when none arrives in time, or the context error if ctx ends first.
func (c *Channel) ReceiveTimeout(ctx context.Context, receiverID uint64, timeout time.Duration) (message.Message, error) {
	const op = "channel.ReceiveTimeout"

	c.waiters.Add(1)
	defer c.waiters.Add(-1)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		// Grab the wake channel before trying so a send that lands between
		// the attempt and the select still wakes us
		wake := c.waitChan()

		msg, err := c.Receive(receiverID)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, ipcerr.ErrWouldBlock) {
			return message.Message{}, err
		}

		select {
		case <-wake:
		case <-timer.C:
			c.stats.timeouts.Add(1)
			return message.Message{}, ipcerr.New(op, ipcerr.KindTimeout, "no message for receiver %d within %s", receiverID, timeout)
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		}
	}
}

func (c *Channel) waitChan() <-chan struct{} {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	return c.wake
}

// notify wakes every ReceiveTimeout caller currently waiting
func (c *Channel) notify() {
	if c.waiters.Load() == 0 {
		return
	}
	c.waitMu.Lock()
	close(c.wake)
	c.wake = make(chan struct{})
	c.waitMu.Unlock()
}

// ReceiveBatch receives up to limit messages, stopping at the first miss
func (c *Channel) ReceiveBatch(receiverID uint64, limit int) []message.Message {
	var out []message.Message
	for len(out) < limit {
		msg, ok := c.receiveOne(receiverID, true)
		if !ok {
			break
		}
		out = append(out, msg)
	}
	return out
}

// ReceiveBatchOptimized drains lock-free messages addressed to receiverID
// (or to anyone) first, then the type-specific queues, and updates the
// statistics once. Lock-free messages for other receivers are parked and
// delivered by later receives.
func (c *Channel) ReceiveBatchOptimized(receiverID uint64, limit int) []message.Message {
	if limit <= 0 {
		return nil
	}
	out := make([]message.Message, 0, limit)

	c.consumerMu.Lock()
	kept := c.pending[:0]
	for _, m := range c.pending {
		if len(out) < limit && addressedTo(m, receiverID) {
			out = append(out, m)
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(c.pending); i++ {
		c.pending[i] = message.Message{}
	}
	c.pending = kept

	for len(out) < limit {
		m, ok := c.consumer.Pop()
		if !ok {
			break
		}
		if addressedTo(m, receiverID) {
			out = append(out, m)
		} else {
			c.pending = append(c.pending, m)
		}
	}
	c.consumerMu.Unlock()

	c.count.Add(-int64(len(out)))

	for len(out) < limit {
		m, ok := c.popQueued(receiverID)
		if !ok {
			break
		}
		c.count.Add(-1)
		out = append(out, m)
	}

	if len(out) > 0 {
		var bytes uint64
		for _, m := range out {
			bytes += uint64(m.Size())
		}
		c.stats.recordReceive(len(out), bytes)
	}
	return out
}

func addressedTo(m message.Message, receiverID uint64) bool {
	return m.ReceiverID == receiverID || m.ReceiverID == 0
}

// Close stops the channel and discards every queued message, returning how
// many were dropped. Waiting receivers are woken.
func (c *Channel) Close() int {
	c.life.Lock()
	swapped := c.closed.CompareAndSwap(false, true)
	c.life.Unlock()
	if !swapped {
		return 0
	}

	dropped := 0
	c.consumerMu.Lock()
	dropped += len(c.pending)
	c.pending = nil
	for {
		if _, ok := c.consumer.Pop(); !ok {
			break
		}
		dropped++
	}
	c.consumerMu.Unlock()

	c.mu.Lock()
	dropped += len(c.priority) + len(c.plain)
	c.priority = nil
	c.plain = nil
	c.mu.Unlock()

	c.count.Add(-int64(dropped))

	c.waitMu.Lock()
	close(c.wake)
	c.wake = make(chan struct{})
	c.waitMu.Unlock()

	return dropped
}

// IsClosed reports whether Close has been called
func (c *Channel) IsClosed() bool { return c.closed.Load() }
