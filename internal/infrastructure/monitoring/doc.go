/*
Package monitoring provides Prometheus metrics for the IPC service and its
introspection API.

# Overview

Metrics are registered through promauto against a caller-supplied registry,
so several service instances (or tests) never collide on registration.

# Features

- Message counters by transport, zero-copy count and size histogram
- Send errors by kind, receive timeouts, batch operations
- Gauges for open channels, live regions and registered pools
- HTTP request metrics for the introspection API
- Service call timing through Timer

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	svc, _ := ipc.New(cfg.IPC, logger)
	svc = svc.WithMetrics(metrics)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	timer := monitoring.NewTimer(metrics, "ipc", "create_channel")
	_, err := svc.CreateChannel(name, typ, capacity)
	timer.StopErr(err)
*/
package monitoring
