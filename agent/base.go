package agent

import "fmt"

// BaseAgent bundles the identity shared by concrete agent implementations.
// Embed it and supply a Respond method to satisfy core.Agent.
type BaseAgent struct {
	name        string
	description string
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the identifier used in flow strings.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a human readable description of the agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description. It must be called before
// the agent is shared with a router.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }
