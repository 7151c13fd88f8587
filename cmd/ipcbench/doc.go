// Package main is the IPC workload driver.
//
// ipcbench creates one channel per transport on an in-process service,
// sends the configured number of messages through it in batches, drains
// them and prints a JSON report with per-transport results, the analyzer
// window statistics and tuning suggestions.
//
// Usage:
//
//	# Defaults: 10000 messages of 128 bytes over every implemented transport
//	./ipcbench
//
//	# Large payloads over shared memory only, paced at 50k msg/s
//	./ipcbench -payload 1024 -transports shared_memory -rate 50000
//
// Signals:
//   - SIGINT, SIGTERM: stop and print the partial report
package main
