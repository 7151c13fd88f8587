/*
Package bench drives synthetic workloads through an ipc.Service.

A Runner creates a point-to-point channel per transport, stages messages in
a queue.BatchBuffer and sends each full batch through a circuit breaker,
paced by a token bucket. Every batch is drained before the next is sent, so
a channel never holds more than one batch and shared-memory slots can be
reused round robin. Zero-copy transports write the payload into the
channel's region or pool block and send only the reference; the receiver
resolves it and checks the bytes.

Each send and receive becomes one analyzer sample. The Report carries the
per-transport counts along with the analyzer statistics and suggestions and
encodes to JSON.

	runner, err := bench.NewRunner(svc, analyzer.New(1000), logger, bench.DefaultOptions())
	if err != nil {
	    return err
	}
	report, err := runner.Run(ctx)
*/
package bench
