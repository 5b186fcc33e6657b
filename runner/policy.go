package runner

import (
	"fmt"
	"strings"

	"github.com/hupe1980/ragflow/core"
)

// RetrievalPolicy decides which text the router sends to the retriever
// before each step.
type RetrievalPolicy int

const (
	// RetrieveCurrentInput queries with the text the agent is about to receive.
	RetrieveCurrentInput RetrievalPolicy = iota
	// RetrieveTask queries with the original task at every step.
	RetrieveTask
	// RetrieveNone disables retrieval; every agent receives "".
	RetrieveNone
)

// String returns the configuration name of the policy.
func (p RetrievalPolicy) String() string {
	switch p {
	case RetrieveCurrentInput:
		return "input"
	case RetrieveTask:
		return "task"
	case RetrieveNone:
		return "none"
	default:
		return "unknown"
	}
}

// Valid reports whether p is a known policy.
func (p RetrievalPolicy) Valid() bool { return p >= RetrieveCurrentInput && p <= RetrieveNone }

// ParseRetrievalPolicy parses "input", "task" or "none". Empty selects
// RetrieveCurrentInput.
func ParseRetrievalPolicy(s string) (RetrievalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "input":
		return RetrieveCurrentInput, nil
	case "task":
		return RetrieveTask, nil
	case "none":
		return RetrieveNone, nil
	default:
		return 0, core.NewConfigurationError("retrieval", "unknown retrieval policy %q", s)
	}
}

// HandoffPolicy decides what the next agent receives as input.
type HandoffPolicy int

const (
	// HandoffLatest passes only the previous agent's output.
	HandoffLatest HandoffPolicy = iota
	// HandoffAccumulate passes the task followed by every prior output,
	// each labeled with the agent that produced it.
	HandoffAccumulate
)

// String returns the configuration name of the policy.
func (p HandoffPolicy) String() string {
	switch p {
	case HandoffLatest:
		return "latest"
	case HandoffAccumulate:
		return "accumulate"
	default:
		return "unknown"
	}
}

// Valid reports whether p is a known policy.
func (p HandoffPolicy) Valid() bool { return p == HandoffLatest || p == HandoffAccumulate }

// ParseHandoffPolicy parses "latest" or "accumulate". Empty selects HandoffLatest.
func ParseHandoffPolicy(s string) (HandoffPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latest":
		return HandoffLatest, nil
	case "accumulate":
		return HandoffAccumulate, nil
	default:
		return 0, core.NewConfigurationError("handoff", "unknown handoff policy %q", s)
	}
}

// transcript builds agent inputs according to a HandoffPolicy.
type transcript struct {
	policy  HandoffPolicy
	task    string
	current string
	entries []string
}

func newTranscript(policy HandoffPolicy, task string) *transcript {
	return &transcript{policy: policy, task: task, current: task}
}

// Input returns the text the next agent receives.
func (t *transcript) Input() string { return t.current }

// Record stores the output of agent and advances the input.
func (t *transcript) Record(agent, output string) {
	if t.policy != HandoffAccumulate {
		t.current = output
		return
	}
	t.entries = append(t.entries, fmt.Sprintf("%s: %s", agent, output))
	t.current = "Task: " + t.task + "\n\n" + strings.Join(t.entries, "\n\n")
}
