// Package clock provides the monotonic time source used for message
// timestamps, latency accounting and deadlines.
//
// Readings are opaque nanosecond counters; only differences between two
// readings from the same Clock are meaningful.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock is a strictly increasing nanosecond counter
type Clock interface {
	Now() uint64
}

// Monotonic reads the runtime monotonic clock relative to its creation
type Monotonic struct {
	start time.Time
	last  atomic.Uint64
}

// NewMonotonic creates a clock anchored at the current instant
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns nanoseconds since the clock was created. Successive calls
// never return the same value.
func (m *Monotonic) Now() uint64 {
	now := uint64(time.Since(m.start).Nanoseconds())
	for {
		last := m.last.Load()
		if now <= last {
			now = last + 1
		}
		if m.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Manual is a clock advanced explicitly. Useful for tests.
type Manual struct {
	now atomic.Uint64
}

// NewManual creates a manual clock starting at start
func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

// Now returns the current reading
func (m *Manual) Now() uint64 {
	return m.now.Load()
}

// Advance moves the clock forward by d nanoseconds
func (m *Manual) Advance(d uint64) {
	m.now.Add(d)
}

var system Clock = NewMonotonic()

// System returns the process-wide monotonic clock
func System() Clock {
	return system
}

// Since returns the nanoseconds elapsed on c since start
func Since(c Clock, start uint64) uint64 {
	now := c.Now()
	if now < start {
		return 0
	}
	return now - start
}
