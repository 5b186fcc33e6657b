package runner

import (
	"context"
	"time"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/logging"
)

// HookType defines the lifecycle points of a run where hooks execute.
type HookType string

const (
	// HookBeforeStep is triggered after retrieval and before an agent responds.
	HookBeforeStep HookType = "before_step"

	// HookAfterStep is triggered after an agent returned its output.
	HookAfterStep HookType = "after_step"

	// HookOnError is triggered once when a run fails.
	HookOnError HookType = "on_error"

	// HookOnComplete is triggered once when a run completes.
	HookOnComplete HookType = "on_complete"
)

// HookContext describes the run state a hook observes.
type HookContext struct {
	// Info identifies the step. For OnError it names the failing step; for
	// OnComplete the last one.
	Info      core.RunInfo
	Status    core.RunStatus
	Input     string
	Retrieved string
	// Output is the agent output (AfterStep) or the run result (OnComplete).
	Output   string
	Err      error
	Duration time.Duration
}

// Hook observes a lifecycle point.
//
// Hooks run synchronously on the run's goroutine. An error returned from a
// BeforeStep or AfterStep hook fails the run; errors from OnError and
// OnComplete hooks are logged and otherwise ignored.
type Hook interface {
	Type() HookType
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionHook wraps a function as a hook implementation.
//
// Example:
//
//	hook := NewFunctionHook(HookAfterStep, func(ctx context.Context, hc *HookContext) error {
//	    fmt.Printf("%s finished in %s\n", hc.Info.Agent, hc.Duration)
//	    return nil
//	})
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

// NewFunctionHook creates a new function-based hook.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type returns the hook type this function handles.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute calls the wrapped function.
func (h *FunctionHook) Execute(ctx context.Context, hc *HookContext) error { return h.fn(ctx, hc) }

// HookManager holds hooks by type and runs them in registration order.
//
// Registration is not safe for concurrent use; register all hooks before the
// router starts serving runs.
type HookManager struct {
	hooks map[HookType][]Hook
}

// NewHookManager creates an empty manager.
func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[HookType][]Hook)}
}

// Register adds hooks to the manager.
func (m *HookManager) Register(hooks ...Hook) {
	for _, h := range hooks {
		m.hooks[h.Type()] = append(m.hooks[h.Type()], h)
	}
}

// Len returns the number of hooks registered for hookType.
func (m *HookManager) Len(hookType HookType) int {
	if m == nil {
		return 0
	}
	return len(m.hooks[hookType])
}

// Execute runs every hook of hookType and stops at the first error.
func (m *HookManager) Execute(ctx context.Context, hookType HookType, hc *HookContext) error {
	if m == nil {
		return nil
	}
	for _, h := range m.hooks[hookType] {
		if err := h.Execute(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}

// LoggingHook logs every lifecycle point it is registered for.
type LoggingHook struct {
	hookType HookType
	logger   logging.Logger
}

// NewLoggingHook creates a hook logging hookType events to logger.
func NewLoggingHook(hookType HookType, logger logging.Logger) *LoggingHook {
	return &LoggingHook{hookType: hookType, logger: logger}
}

// Type returns the hook type this logger handles.
func (h *LoggingHook) Type() HookType { return h.hookType }

// Execute logs the hook context.
func (h *LoggingHook) Execute(_ context.Context, hc *HookContext) error {
	args := []any{
		"run_id", hc.Info.RunID,
		"agent", hc.Info.Agent,
		"step", hc.Info.Step,
		"total", hc.Info.Total,
		"status", hc.Status.String(),
	}
	if hc.Duration > 0 {
		args = append(args, "duration", hc.Duration)
	}
	if hc.Err != nil {
		h.logger.Error("router.hook."+string(h.hookType), append(args, "error", hc.Err)...)
		return nil
	}
	h.logger.Info("router.hook."+string(h.hookType), args...)
	return nil
}
