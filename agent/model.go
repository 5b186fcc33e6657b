package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/logging"
	"github.com/hupe1980/ragflow/model"
)

// DefaultRefinePrompt asks the model to improve its previous draft on every
// turn after the first.
const DefaultRefinePrompt = "Review your previous answer against the task and the context above. Correct mistakes, fill gaps and reply with the improved answer only."

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction Instruction
	Description string
	// MaxTurns bounds the backend calls made for one input. Turns after the
	// first refine the previous draft.
	MaxTurns int
	// Retriever is consulted again with the current draft on refinement
	// turns. It is independent of the router's retriever.
	Retriever    core.Retriever
	RefinePrompt string
	// EnableStreaming requests streamed generation; chunks go to OnChunk.
	EnableStreaming bool
	OnChunk         func(agent, chunk string)
	Logger          logging.Logger
}

// ModelAgent answers one input with a single model backend.
//
// It is immutable after construction and holds no per-run state.
type ModelAgent struct {
	BaseAgent
	llm             model.Model
	instruction     Instruction
	maxTurns        int
	retriever       core.Retriever
	refinePrompt    string
	enableStreaming bool
	onChunk         func(agent, chunk string)
	logger          logging.Logger
}

// NewModelAgent creates a new model-based agent with sensible defaults: a
// generic role naming the agent, one turn, no streaming.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:  NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxTurns:     1,
		RefinePrompt: DefaultRefinePrompt,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxTurns < 1 {
		opts.MaxTurns = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	base := NewBaseAgent(name)
	if opts.Description != "" {
		base.SetDescription(opts.Description)
	}

	return &ModelAgent{
		BaseAgent:       base,
		llm:             llm,
		instruction:     opts.Instruction,
		maxTurns:        opts.MaxTurns,
		retriever:       opts.Retriever,
		refinePrompt:    opts.RefinePrompt,
		enableStreaming: opts.EnableStreaming,
		onChunk:         opts.OnChunk,
		logger:          opts.Logger,
	}
}

// Compile-time check.
var _ core.Agent = (*ModelAgent)(nil)

// LLM returns the language model backend.
func (a *ModelAgent) LLM() model.Model { return a.llm }

// MaxTurns returns the turn budget for a single input.
func (a *ModelAgent) MaxTurns() int { return a.maxTurns }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// ResolveInstructions produces the final role text for the current context.
func (a *ModelAgent) ResolveInstructions(ctx context.Context) (string, error) {
	return a.instruction.Resolve(ctx)
}

// Respond implements core.Agent.
//
// The backend receives the role as instructions, the retrieved context as a
// separate user message when it is non-empty, and the input. Blank input,
// backend failures and blank output are reported as *core.GenerationError.
func (a *ModelAgent) Respond(ctx context.Context, input, retrieved string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", a.fail(core.ErrEmptyInput)
	}

	instructions, err := a.ResolveInstructions(ctx)
	if err != nil {
		return "", a.fail(err)
	}

	messages := make([]core.Message, 0, 2)
	if retrieved != "" {
		messages = append(messages, core.UserMessage(FormatRetrieved(retrieved)))
	}
	messages = append(messages, core.UserMessage(input))

	limiter := core.NewTurnLimiter(a.maxTurns)

	var draft string
	for limiter.Take() == nil {
		turn := limiter.Used()
		a.logger.Debug("agent.turn.start", "agent", a.Name(), "turn", turn, "max_turns", a.maxTurns)

		res, err := model.Collect(ctx, a.llm, model.Request{
			Instructions: instructions,
			Messages:     messages,
			Stream:       a.enableStreaming,
		}, a.chunkHandler())
		if err != nil {
			a.logger.Error("agent.turn.error", "agent", a.Name(), "turn", turn, "error", err)
			return "", a.fail(err)
		}

		draft = res.Text
		a.logger.Debug("agent.turn.complete", "agent", a.Name(), "turn", turn, "finish_reason", res.FinishReason)

		if limiter.Remaining() == 0 {
			break
		}

		messages = append(messages, core.AssistantMessage(draft))
		if extra := a.consult(ctx, draft); extra != "" {
			messages = append(messages, core.UserMessage(FormatRetrieved(extra)))
		}
		messages = append(messages, core.UserMessage(a.refinePrompt))
	}

	return draft, nil
}

// consult queries the agent's own retriever with the current draft. Failures
// degrade to no additional context.
func (a *ModelAgent) consult(ctx context.Context, draft string) string {
	if a.retriever == nil {
		return ""
	}

	extra, err := a.retriever.Query(ctx, draft)
	if err != nil {
		a.logger.Warn("agent.retrieval.degraded", "agent", a.Name(), "error", err)
		return ""
	}

	return extra
}

func (a *ModelAgent) chunkHandler() func(string) {
	if !a.enableStreaming || a.onChunk == nil {
		return nil
	}
	name := a.Name()
	return func(chunk string) { a.onChunk(name, chunk) }
}

func (a *ModelAgent) fail(err error) error {
	return &core.GenerationError{Agent: a.Name(), Err: err}
}

// FormatRetrieved wraps retrieved document blocks into the context message
// placed before the input.
func FormatRetrieved(retrieved string) string {
	return "Relevant context:\n\n" + retrieved
}
