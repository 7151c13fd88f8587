package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/ipcerr"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/shared/clock"
)

var errSend = errors.New("send failed")

func run(b *Breaker, ok bool) error {
	return b.Execute(func() error {
		if ok {
			return nil
		}
		return errSend
	})
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Interval: time.Minute, Timeout: time.Minute},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				ReadyToTrip: func(counts Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name: "success resets the failure streak",
			settings: Settings{
				ReadyToTrip: func(counts Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			},
			requests:      []bool{false, false, true, false, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.settings.Clock = clock.NewManual(1)
			b := New("test", tt.settings)
			for _, ok := range tt.requests {
				_ = run(b, ok)
			}
			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	clk := clock.NewManual(1)
	b := New("test", Settings{
		Timeout: time.Second,
		Clock:   clk,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	require.ErrorIs(t, run(b, false), errSend)
	require.ErrorIs(t, run(b, false), errSend)
	require.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clk := clock.NewManual(1)
	var transitions []string
	b := New("lock_free_queue", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		Clock:       clk,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = run(b, false)
	require.Equal(t, StateOpen, b.State())

	clk.Advance(uint64(time.Second))
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, run(b, true))
	require.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, run(b, true))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{
		"lock_free_queue:closed->open",
		"lock_free_queue:open->half-open",
		"lock_free_queue:half-open->closed",
	}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := clock.NewManual(1)
	b := New("test", Settings{
		Timeout: time.Second,
		Clock:   clk,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	_ = run(b, false)
	clk.Advance(uint64(time.Second))
	require.Equal(t, StateHalfOpen, b.State())

	_ = run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsRequests(t *testing.T) {
	clk := clock.NewManual(1)
	b := New("test", Settings{
		MaxRequests: 1,
		Timeout:     time.Second,
		Clock:       clk,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})
	_ = run(b, false)
	clk.Advance(uint64(time.Second))

	err := b.Execute(func() error {
		assert.ErrorIs(t, run(b, true), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clk := clock.NewManual(1)
	b := New("test", Settings{
		Interval: time.Second,
		Clock:    clk,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	_ = run(b, false)
	_ = run(b, false)
	require.Equal(t, uint32(2), b.Counts().ConsecutiveFailures)

	clk.Advance(uint64(time.Second))
	_ = run(b, false)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerIsFailure(t *testing.T) {
	b := New("test", Settings{
		Clock: clock.NewManual(1),
		IsFailure: func(err error) bool {
			return ipcerr.IsRetryable(err)
		},
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	invalid := ipcerr.New("send", ipcerr.KindInvalidArgument, "bad message")
	err := b.Execute(func() error { return invalid })
	require.ErrorIs(t, err, ipcerr.ErrInvalidArgument)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().TotalSuccesses)

	full := ipcerr.New("send", ipcerr.KindCapacityExceeded, "channel full")
	_ = b.Execute(func() error { return full })
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("test", Settings{
		Clock: clock.NewManual(1),
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	assert.Panics(t, func() {
		_ = b.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}
