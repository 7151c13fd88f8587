// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// The IPC hot path (send, receive) never logs. Lifecycle events such as
// channel creation, region and pool provisioning, and partial batch failures
// are logged with structured fields:
//
//	logger := logging.NewDefault().Component("ipc")
//	logger.Info("channel created", zap.Uint64("channel_id", id))
//
// Tests use NewNop, or Wrap around a zaptest/observer core to assert on
// emitted entries.
package logging
