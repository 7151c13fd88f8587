// Package main is the entry point for the IPC introspection server.
//
// The server hosts one in-process IPC service and exposes it over HTTP:
// channel management, inline send and receive, service and channel
// statistics, the performance analyzer window and Prometheus metrics.
//
// Configuration:
//   - Defaults for development
//   - YAML or TOML file via -config
//   - Environment variables (override the file)
//   - CLI flags (override everything)
//
// Usage:
//
//	# Defaults plus environment
//	./server
//
//	# File config, development logging
//	./server -config ipc.yaml -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
