package core

import (
	"context"
	"fmt"
	"strings"
)

// RunStatus is the lifecycle state of a single router run.
//
// Transitions are Idle -> Running -> Completed | Failed. A failed run is never
// retried by the router; callers re-issue it from Idle.
type RunStatus int

const (
	// RunIdle is the state before the first agent executes.
	RunIdle RunStatus = iota
	// RunRunning is the state while agents execute.
	RunRunning
	// RunCompleted is the terminal success state.
	RunCompleted
	// RunFailed is the terminal failure state.
	RunFailed
)

// String returns the lowercase name of the status.
func (s RunStatus) String() string {
	switch s {
	case RunIdle:
		return "idle"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool { return s == RunCompleted || s == RunFailed }

// RunInfo identifies the step currently executing inside a run. The router
// attaches it to the context handed to each agent so role templates and
// loggers can reference it.
type RunInfo struct {
	RunID string
	Task  string
	Agent string
	Step  int // 1-based position in the flow
	Total int // flow length
	Loop  int // 1-based pass over the flow
}

// String renders the step as "running(step i of N)".
func (ri RunInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(step %d of %d)", RunRunning, ri.Step, ri.Total)
	if ri.Agent != "" {
		fmt.Fprintf(&b, " agent=%s", ri.Agent)
	}
	return b.String()
}

// Vars exposes the info as template variables.
func (ri RunInfo) Vars() map[string]any {
	return map[string]any{
		"RunID": ri.RunID,
		"Task":  ri.Task,
		"Agent": ri.Agent,
		"Step":  ri.Step,
		"Total": ri.Total,
		"Loop":  ri.Loop,
	}
}

type runInfoKey struct{}

// WithRunInfo returns a copy of ctx carrying ri.
func WithRunInfo(ctx context.Context, ri RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, ri)
}

// RunInfoFromContext extracts the RunInfo attached by WithRunInfo.
func RunInfoFromContext(ctx context.Context) (RunInfo, bool) {
	ri, ok := ctx.Value(runInfoKey{}).(RunInfo)
	return ri, ok
}
