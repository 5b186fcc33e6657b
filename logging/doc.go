// Package logging provides a minimal logging interface and adapters for ragflow.
//
// The Logger interface defines the leveled logging methods (Debug, Info, Warn,
// Error) that the router, agents and document stores use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, library defaults)
//   - ParseLevel for user facing level configuration (CLI flags, YAML)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	router, err := runner.New(registry, fl, func(o *runner.Options) { o.Logger = logger })
package logging
