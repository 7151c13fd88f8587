package queue

// BatchBuffer stages up to a fixed number of items before they are flushed
// together. It is not safe for concurrent use.
type BatchBuffer[T any] struct {
	items    []T
	capacity int
}

// NewBatchBuffer creates a buffer holding at most capacity items
func NewBatchBuffer[T any](capacity int) *BatchBuffer[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &BatchBuffer[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push stages an item, returning false when the buffer is full
func (b *BatchBuffer[T]) Push(item T) bool {
	if len(b.items) >= b.capacity {
		return false
	}
	b.items = append(b.items, item)
	return true
}

// Flush returns the staged items in push order and empties the buffer
func (b *BatchBuffer[T]) Flush() []T {
	out := b.items
	b.items = make([]T, 0, b.capacity)
	return out
}

// Len returns the number of staged items
func (b *BatchBuffer[T]) Len() int { return len(b.items) }

// Cap returns the buffer capacity
func (b *BatchBuffer[T]) Cap() int { return b.capacity }

// IsFull reports whether another Push would fail
func (b *BatchBuffer[T]) IsFull() bool { return len(b.items) >= b.capacity }
