/*
Package resilience provides a circuit breaker for backpressure-sensitive
callers.

# Overview

A Breaker counts failures of the calls it wraps. Once ReadyToTrip reports
true it opens and rejects calls without running them until Timeout has
passed, then lets MaxRequests probe calls through before closing again.

IsFailure filters which errors count. The workload driver uses it so that
only retryable IPC errors (a full channel, an empty queue, a timeout) trip
the breaker, while caller mistakes are returned unchanged.

# Usage

	breaker := resilience.New("lock_free_queue", resilience.Settings{
		MaxRequests: 3,
		Timeout:     100 * time.Millisecond,
		IsFailure:   ipcerr.IsRetryable,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})

	err := breaker.Execute(func() error {
		return svc.SendMessage(chID, msg)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

Time is read from Settings.Clock so tests can drive transitions with a
manual clock.
*/
package resilience
