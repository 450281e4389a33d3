// Package logging provides a minimal logging interface and adapters for useragents.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the registry, plugin loader, dispatcher and server use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, library defaults)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	reg := registry.New(func(o *registry.Options) { o.Logger = logger })
package logging
