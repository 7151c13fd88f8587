// Package server assembles the IPC introspection server.
//
// NewServer builds every component from one config.Config:
//   - zap logger from the logging section
//   - Prometheus registry with Go and process collectors plus the IPC metrics
//   - span tracer
//   - ipc.Service and the performance analyzer
//   - gin router with recovery, tracing, metrics, CORS, rate limiting and
//     request logging middleware
//
// Lifecycle:
//  1. NewServer validates the config and wires components
//  2. Run listens until Shutdown is called
//  3. Shutdown drains HTTP requests, destroys every channel and flushes the
//     tracer and logger
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Shutdown(context.Background())
package server
