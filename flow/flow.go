// Package flow models the ordered list of agents a run passes through.
//
// A flow is written as agent names joined by an arrow, for example
// "Medical-Data-Extractor -> Diagnostic-Specialist -> Treatment-Planner".
// It is parsed once into a Flow and validated against the agent registry
// before any agent executes.
package flow

import (
	"strings"

	"github.com/hupe1980/ragflow/core"
)

// Separator joins agent identifiers in a flow string.
const Separator = "->"

// ID identifies an agent within a flow.
type ID string

// Flow is an ordered sequence of agent identifiers. Duplicates are allowed:
// the same agent may run at several positions.
type Flow []ID

// Resolver looks up agents by name.
type Resolver interface {
	Lookup(name string) (core.Agent, bool)
}

// Parse splits s on Separator and trims each element.
//
// An empty string, or an empty element such as in "A -> -> B", is a
// configuration error.
func Parse(s string) (Flow, error) {
	if strings.TrimSpace(s) == "" {
		return nil, core.NewConfigurationError("flow", "flow must not be empty")
	}

	parts := strings.Split(s, Separator)
	f := make(Flow, 0, len(parts))
	for i, p := range parts {
		id := strings.TrimSpace(p)
		if id == "" {
			return nil, core.NewConfigurationError("flow", "empty agent identifier at position %d in %q", i+1, s)
		}
		f = append(f, ID(id))
	}

	return f, nil
}

// MustParse is like Parse but panics on error. It is intended for flows
// hard-coded in programs and tests.
func MustParse(s string) Flow {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Of builds a flow from agent names.
func Of(names ...string) Flow {
	f := make(Flow, len(names))
	for i, n := range names {
		f[i] = ID(n)
	}
	return f
}

// String formats the flow as "A -> B -> C".
func (f Flow) String() string {
	parts := make([]string, len(f))
	for i, id := range f {
		parts[i] = string(id)
	}
	return strings.Join(parts, " "+Separator+" ")
}

// Len returns the number of steps.
func (f Flow) Len() int { return len(f) }

// Validate checks that f is non-empty and that every identifier resolves.
func (f Flow) Validate(r Resolver) error {
	if len(f) == 0 {
		return core.NewConfigurationError("flow", "flow must not be empty")
	}
	for i, id := range f {
		if _, ok := r.Lookup(string(id)); !ok {
			return core.NewConfigurationError("flow", "unknown agent %q at position %d", id, i+1)
		}
	}
	return nil
}

// Resolve maps every identifier to its agent, validating f first.
func (f Flow) Resolve(r Resolver) ([]core.Agent, error) {
	if err := f.Validate(r); err != nil {
		return nil, err
	}
	agents := make([]core.Agent, len(f))
	for i, id := range f {
		agents[i], _ = r.Lookup(string(id))
	}
	return agents, nil
}
