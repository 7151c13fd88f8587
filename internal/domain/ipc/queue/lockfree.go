// Package queue provides the lock-free building blocks used by channels.
//
// LockFreeQueue is an unbounded multi-producer single-consumer linked queue.
// Producers never block. The single consumer is represented by a Consumer
// handle that can be claimed only once, so code holding no handle cannot pop.
package queue

import (
	"sync/atomic"
)

type node[T any] struct {
	next  atomic.Pointer[node[T]]
	value T
}

// LockFreeQueue is an unbounded MPSC queue with a permanent dummy node
type LockFreeQueue[T any] struct {
	head     atomic.Pointer[node[T]] // most recently pushed node
	tail     *node[T]                // consumer side, owned by the Consumer
	claimed  atomic.Bool
	consumer *Consumer[T]
}

// NewLockFreeQueue creates an empty queue
func NewLockFreeQueue[T any]() *LockFreeQueue[T] {
	stub := &node[T]{}
	q := &LockFreeQueue[T]{tail: stub}
	q.head.Store(stub)
	q.consumer = &Consumer[T]{q: q}
	return q
}

// Push appends a value. Safe for any number of concurrent producers.
func (q *LockFreeQueue[T]) Push(v T) {
	n := &node[T]{value: v}
	prev := q.head.Swap(n)
	// Between the swap and this store the consumer sees prev.next == nil and
	// treats the queue as empty; the value becomes visible once linked.
	prev.next.Store(n)
}

// Consumer claims the single consumer handle. Only the first call succeeds.
func (q *LockFreeQueue[T]) Consumer() (*Consumer[T], bool) {
	if !q.claimed.CompareAndSwap(false, true) {
		return nil, false
	}
	return q.consumer, true
}

// Consumer is the only type allowed to pop from a LockFreeQueue.
// Pop must not be called concurrently on the same handle.
type Consumer[T any] struct {
	_ noCopy
	q *LockFreeQueue[T]
}

// Pop removes the oldest value. ok is false when the queue is empty.
func (c *Consumer[T]) Pop() (v T, ok bool) {
	tail := c.q.tail
	next := tail.next.Load()
	if next == nil {
		return v, false
	}
	c.q.tail = next
	v = next.value
	var zero T
	next.value = zero
	return v, true
}

// Empty reports whether a Pop would currently find nothing
func (c *Consumer[T]) Empty() bool {
	return c.q.tail.next.Load() == nil
}

// noCopy makes go vet's copylocks check flag copies of a Consumer
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
