// Package logging provides a minimal logging interface and adapters for the
// chat simulator.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the scheduler, engine and server use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - ChatLogger, a slog-backed logger with component and engine scoping
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng, err := engine.New(func(o *engine.Options) { o.Logger = logger.WithComponent("engine") })
//
// The interface stays small so callers can plug any structured logger.
package logging
