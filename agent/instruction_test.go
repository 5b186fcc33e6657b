package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragflow/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_TemplateWithRunInfo(t *testing.T) {
	inst := NewInstructionFromText("You are {{.Agent}}, step {{.Step}} of {{.Total}}. Task: {{.Task}}")
	ctx := core.WithRunInfo(context.Background(), core.RunInfo{Agent: "Treatment-Planner", Task: "T", Step: 3, Total: 5})

	got, err := inst.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "You are Treatment-Planner, step 3 of 5. Task: T", got)
}

func TestInstruction_TemplateWithoutRunInfo(t *testing.T) {
	inst := NewInstructionFromText("Agent: {{.Agent}}, task: {{.Task}}.")

	got, err := inst.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Agent: , task: .", got)
	assert.NotContains(t, got, "<no value>")
}

func TestInstruction_TemplateUnknownKey(t *testing.T) {
	inst := NewInstructionFromText("Handle {{.Tsk}}")
	ctx := core.WithRunInfo(context.Background(), core.RunInfo{Agent: "A", Task: "T"})

	_, err := inst.Resolve(ctx)
	assert.Error(t, err)
}

func TestInstruction_TemplateError(t *testing.T) {
	inst := NewInstructionFromText("{{.Agent")

	_, err := inst.Resolve(context.Background())
	assert.Error(t, err)
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(context.Context) (string, error) { return "dynamic via func", nil })
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dynamic via func", got)
}

func TestInstruction_NewInstructionFromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "provider text"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "provider text", got)
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	expectedErr := errors.New("boom")
	inst := NewInstructionFromProvider(mockProvider{err: expectedErr})

	_, err := inst.Resolve(context.Background())
	assert.ErrorIs(t, err, expectedErr)
}
