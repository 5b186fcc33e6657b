package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragflow/core"
)

func named(name string) core.Agent {
	return core.AgentFunc{AgentName: name, Fn: func(_ context.Context, in, _ string) (string, error) { return in, nil }}
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(named("A"), named("B"))
	require.NoError(t, err)

	a, ok := r.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "A", a.Name())

	_, ok = r.Lookup("Ghost")
	assert.False(t, ok)

	assert.Equal(t, []string{"A", "B"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RejectsInvalidNames(t *testing.T) {
	tests := []struct {
		name   string
		agents []core.Agent
	}{
		{name: "empty", agents: []core.Agent{named("")}},
		{name: "whitespace", agents: []core.Agent{named(" A ")}},
		{name: "separator", agents: []core.Agent{named("A->B")}},
		{name: "duplicate", agents: []core.Agent{named("A"), named("A")}},
		{name: "nil", agents: []core.Agent{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.agents...)
			assert.ErrorIs(t, err, core.ErrConfiguration)
		})
	}
}
