/*
Package tracing provides lightweight request tracing for the introspection
API and the workload driver.

Spans carry a trace id and a span id (prefixed ULIDs). Finished spans are
handed to a buffered collector goroutine that logs them through zap; when
the buffer is full the span is dropped with a warning instead of blocking
the caller.

# Usage

	tracer := tracing.New("ipc-server", logger.Logger, 1000)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "bench.transport")
	span.SetTag("transport", "lock_free_queue")
	defer func() {
	    span.Finish()
	    tracer.Submit(span)
	}()

Incoming X-Trace-ID and X-Span-ID headers continue an existing trace; the
response always carries the ids of the request span.
*/
package tracing
