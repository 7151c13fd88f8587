package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonotonicStrictlyIncreasing(t *testing.T) {
	c := NewMonotonic()

	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Now()
		assert.Greater(t, now, prev)
		prev = now
	}
}

func TestMonotonicConcurrentUnique(t *testing.T) {
	c := NewMonotonic()

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, 500)
			for i := 0; i < 500; i++ {
				local = append(local, c.Now())
			}
			mu.Lock()
			for _, v := range local {
				seen[v] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 8*500)
}

func TestManualClock(t *testing.T) {
	c := NewManual(100)
	assert.Equal(t, uint64(100), c.Now())

	c.Advance(50)
	assert.Equal(t, uint64(150), c.Now())
	assert.Equal(t, uint64(50), Since(c, 100))
	assert.Equal(t, uint64(0), Since(c, 200))
}
