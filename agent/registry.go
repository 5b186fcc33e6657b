package agent

import (
	"strings"
	"sync"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/flow"
)

// Registry maps agent names to agents. Names are unique, non-empty and may
// not contain the flow separator, so every registered agent can be addressed
// from a flow string.
//
// Registration happens during construction; lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	order  []string
}

// NewRegistry creates a registry holding agents.
func NewRegistry(agents ...core.Agent) (*Registry, error) {
	r := &Registry{agents: make(map[string]core.Agent, len(agents))}
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a to the registry.
func (r *Registry) Register(a core.Agent) error {
	if a == nil {
		return core.NewConfigurationError("agents", "agent must not be nil")
	}

	name := a.Name()
	if err := ValidateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return core.NewConfigurationError("agents", "duplicate agent name %q", name)
	}

	r.agents[name] = a
	r.order = append(r.order, name)

	return nil
}

// Lookup returns the agent registered under name.
func (r *Registry) Lookup(name string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Names returns agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ValidateName reports whether name can identify an agent in a flow.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return core.NewConfigurationError("agents", "agent name must not be empty")
	case name != strings.TrimSpace(name):
		return core.NewConfigurationError("agents", "agent name %q has surrounding whitespace", name)
	case strings.Contains(name, flow.Separator):
		return core.NewConfigurationError("agents", "agent name %q must not contain %q", name, flow.Separator)
	}
	return nil
}
