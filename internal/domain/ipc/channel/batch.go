package channel

import (
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/message"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/clock"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/id"
)

// Payload size thresholds used by SendBatchSmart
const (
	LargePayloadThreshold = 4096
	SmallPayloadThreshold = 256
)

// SendBatch enqueues msgs in order under one batch id. The whole batch is
// refused with CapacityExceeded if it cannot fit when the call starts.
// Otherwise it stops at the first failed message and returns how many were
// enqueued along with that failure.
func (c *Channel) SendBatch(msgs []message.Message) (int, error) {
	const op = "channel.SendBatch"

	if len(msgs) == 0 {
		return 0, nil
	}

	c.life.RLock()
	defer c.life.RUnlock()

	if c.closed.Load() {
		return 0, c.errClosed(op)
	}
	if c.count.Load()+int64(len(msgs)) > c.maxMessages {
		c.stats.errors.Add(1)
		return 0, ipcerr.New(op, ipcerr.KindCapacityExceeded,
			"batch of %d does not fit channel %d (%d of %d)", len(msgs), c.id, c.count.Load(), c.maxMessages)
	}

	batchID := id.NextBatchID()

	if len(msgs) <= c.batchThreshold && c.defaultTransport == message.TransportLockFreeQueue {
		for i, m := range msgs {
			m.BatchID = batchID
			if err := c.send(op, m); err != nil {
				return i, err
			}
		}
		return len(msgs), nil
	}

	start := c.clock.Now()
	sent, direct := 0, 0
	var directBytes uint64

	// Lock-free messages skip Send and are accounted for together
	flush := func() {
		if direct > 0 {
			c.stats.recordSendBatch(direct, directBytes, clock.Since(c.clock, start))
			c.notify()
		}
	}

	for _, m := range msgs {
		m.BatchID = batchID

		if m.Transport == message.TransportLockFreeQueue {
			if !c.reserve(1) {
				c.stats.errors.Add(1)
				flush()
				return sent, c.errFull(op)
			}
			c.lockFree.Push(m)
			direct++
			directBytes += uint64(m.Size())
			sent++
			continue
		}

		if err := c.send(op, m); err != nil {
			flush()
			return sent, err
		}
		sent++
	}

	flush()
	return sent, nil
}

// SendBatchSmart retags every message with the transport that suits the
// batch, then sends it with SendBatch. Large batches go to shared memory,
// small payloads to the memory pool, everything else to the lock-free queue.
// A store the channel lacks is never chosen. Messages retagged for a store
// without carrying its reference fall back to the default transport on send.
func (c *Channel) SendBatchSmart(msgs []message.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	total := 0
	for _, m := range msgs {
		total += m.Payload.Len()
	}
	avg := total / len(msgs)

	tagged := make([]message.Message, len(msgs))
	for i, m := range msgs {
		switch n := m.Payload.Len(); {
		case avg > LargePayloadThreshold && c.region != nil:
			m.Transport = message.TransportSharedMemory
		case n > 0 && n <= SmallPayloadThreshold && c.pool != nil:
			m.Transport = message.TransportMemoryPool
		default:
			m.Transport = message.TransportLockFreeQueue
		}
		tagged[i] = m
	}

	return c.SendBatch(tagged)
}
