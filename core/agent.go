package core

import "context"

// Agent is a named unit that transforms input text into output text.
//
// Respond receives the current run input (never empty when called by the
// router) and the context retrieved for this turn, which may be empty when no
// retriever is configured or retrieval degraded. Implementations surface
// backend failures as errors instead of returning empty output.
type Agent interface {
	Name() string
	Respond(ctx context.Context, input string, retrieved string) (string, error)
}

// AgentFunc adapts a plain function into an Agent.
type AgentFunc struct {
	AgentName string
	Fn        func(ctx context.Context, input, retrieved string) (string, error)
}

// Name implements Agent.
func (f AgentFunc) Name() string { return f.AgentName }

// Respond implements Agent.
func (f AgentFunc) Respond(ctx context.Context, input, retrieved string) (string, error) {
	return f.Fn(ctx, input, retrieved)
}
