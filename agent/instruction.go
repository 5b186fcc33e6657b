package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context) (string, error) { return f(ctx) }

// Instruction represents either a static role text or a dynamic provider.
//
// Static text may contain text/template markers; they are rendered with the
// core.RunInfo attached to the context ({{.Agent}}, {{.Task}}, {{.Step}},
// {{.Total}}, {{.Loop}}, {{.RunID}}). Any other key fails to render.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx)
	}

	// Outside a run every known key renders as its zero value.
	ri, _ := core.RunInfoFromContext(ctx)
	vars := ri.Vars()

	text, err := util.RenderRole(i.text, vars)
	if err != nil {
		return "", fmt.Errorf("failed to render role template: %w", err)
	}

	return text, nil
}
