package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/ragflow/core"
)

// Call is one recorded Respond invocation.
type Call struct {
	Input     string
	Retrieved string
}

// RecordingAgent is a core.Agent returning a fixed output (or error) and
// recording every call.
type RecordingAgent struct {
	AgentName string
	Output    string
	Err       error
	// Hook, when set, computes the output instead of Output/Err.
	Hook func(ctx context.Context, input, retrieved string) (string, error)

	mu    sync.Mutex
	calls []Call
	log   *CallLog
}

// NewRecordingAgent returns an agent named name that answers output.
func NewRecordingAgent(name, output string) *RecordingAgent {
	return &RecordingAgent{AgentName: name, Output: output}
}

// Failing returns an agent named name that fails with err.
func Failing(name string, err error) *RecordingAgent {
	return &RecordingAgent{AgentName: name, Err: err}
}

// WithLog makes the agent append its name to log on every call.
func (a *RecordingAgent) WithLog(log *CallLog) *RecordingAgent {
	a.log = log
	return a
}

// Name implements core.Agent.
func (a *RecordingAgent) Name() string { return a.AgentName }

// Respond implements core.Agent.
func (a *RecordingAgent) Respond(ctx context.Context, input, retrieved string) (string, error) {
	a.mu.Lock()
	a.calls = append(a.calls, Call{Input: input, Retrieved: retrieved})
	a.mu.Unlock()

	if a.log != nil {
		a.log.Add(a.AgentName)
	}

	if a.Hook != nil {
		return a.Hook(ctx, input, retrieved)
	}
	if a.Err != nil {
		return "", a.Err
	}
	return a.Output, nil
}

// Calls returns a copy of the recorded calls.
func (a *RecordingAgent) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallLog records the order in which agents were invoked.
type CallLog struct {
	mu    sync.Mutex
	names []string
}

// Add appends name.
func (l *CallLog) Add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

// Names returns the recorded names in call order.
func (l *CallLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Compile-time check.
var _ core.Agent = (*RecordingAgent)(nil)
