package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration classifies invalid static configuration: an empty flow,
	// an unknown agent identifier or missing credentials and paths. It is
	// always raised before any agent executes.
	ErrConfiguration = errors.New("configuration error")

	// ErrGeneration classifies a failed agent turn. It aborts the remaining flow.
	ErrGeneration = errors.New("generation error")

	// ErrRetrieval classifies an unreachable or unreadable document store. The
	// router degrades to empty retrieved context when it sees this error.
	ErrRetrieval = errors.New("retrieval error")

	// ErrEmptyInput is returned when a run or an agent receives blank input.
	ErrEmptyInput = errors.New("input must not be empty")
)

// ConfigurationError describes a single invalid configuration field.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

// NewConfigurationError builds a ConfigurationError for field.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "configuration error: " + msg
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Unwrap returns the underlying cause, if any.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// GenerationError identifies the agent (and, inside a run, the step) whose
// backend call failed.
type GenerationError struct {
	Agent string
	Step  int // 1-based; zero when raised outside a router run
	Total int
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("generation error: agent %q (step %d of %d): %v", e.Agent, e.Step, e.Total, e.Err)
	}
	return fmt.Sprintf("generation error: agent %q: %v", e.Agent, e.Err)
}

// Is reports whether target is ErrGeneration.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// Unwrap returns the underlying backend error.
func (e *GenerationError) Unwrap() error { return e.Err }

// RetrievalError wraps a failure of a document store.
type RetrievalError struct {
	Store string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval error: %s: %v", e.Store, e.Err)
}

// Is reports whether target is ErrRetrieval.
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

// Unwrap returns the underlying store error.
func (e *RetrievalError) Unwrap() error { return e.Err }
