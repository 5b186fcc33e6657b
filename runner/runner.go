package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/flow"
	"github.com/hupe1980/ragflow/logging"
	"github.com/hupe1980/ragflow/metrics"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Name identifies the router in logs.
	Name        string
	Description string
	// Retriever supplies context before each step. Nil disables retrieval.
	Retriever       core.Retriever
	RetrievalPolicy RetrievalPolicy
	HandoffPolicy   HandoffPolicy
	// Loops is the number of passes over the flow. The output of one pass
	// is the input of the next.
	Loops int
	// Timeout bounds a whole run. Zero means no limit beyond the caller's context.
	Timeout time.Duration
	Hooks   *HookManager
	Logger  logging.Logger
	Metrics metrics.Recorder
}

// Step records one agent turn of a run.
type Step struct {
	Agent     string
	Step      int
	Total     int
	Loop      int
	Input     string
	Retrieved string
	Output    string
	Duration  time.Duration
}

// Result is the outcome of Execute.
type Result struct {
	RunID  string
	Task   string
	Output string
	Status core.RunStatus
	Steps  []Step
}

// Router executes a flow of agents strictly sequentially against one task.
//
// A Router is immutable after New and holds no per-run state; concurrent
// Run calls are independent.
type Router struct {
	name            string
	description     string
	flow            flow.Flow
	agents          []core.Agent
	retriever       core.Retriever
	retrievalPolicy RetrievalPolicy
	handoffPolicy   HandoffPolicy
	loops           int
	timeout         time.Duration
	hooks           *HookManager
	logger          logging.Logger
	metrics         metrics.Recorder
}

// New validates f against agents and constructs a Router. Any invalid
// setting is reported as a *core.ConfigurationError; no agent is invoked.
func New(agents flow.Resolver, f flow.Flow, optFns ...func(o *Options)) (*Router, error) {
	opts := Options{
		Name:            "ragflow",
		RetrievalPolicy: RetrieveCurrentInput,
		HandoffPolicy:   HandoffLatest,
		Loops:           1,
		Logger:          logging.NoOpLogger{},
		Metrics:         metrics.NoOpRecorder{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if agents == nil {
		return nil, core.NewConfigurationError("agents", "agent registry must not be nil")
	}

	resolved, err := f.Resolve(agents)
	if err != nil {
		return nil, err
	}

	if opts.Loops < 1 {
		return nil, core.NewConfigurationError("loops", "loops must be at least 1, got %d", opts.Loops)
	}
	if opts.Timeout < 0 {
		return nil, core.NewConfigurationError("timeout", "timeout must not be negative, got %s", opts.Timeout)
	}
	if !opts.RetrievalPolicy.Valid() {
		return nil, core.NewConfigurationError("retrieval", "unknown retrieval policy %d", int(opts.RetrievalPolicy))
	}
	if !opts.HandoffPolicy.Valid() {
		return nil, core.NewConfigurationError("handoff", "unknown handoff policy %d", int(opts.HandoffPolicy))
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpRecorder{}
	}

	steps := make(flow.Flow, len(f))
	copy(steps, f)

	return &Router{
		name:            opts.Name,
		description:     opts.Description,
		flow:            steps,
		agents:          resolved,
		retriever:       opts.Retriever,
		retrievalPolicy: opts.RetrievalPolicy,
		handoffPolicy:   opts.HandoffPolicy,
		loops:           opts.Loops,
		timeout:         opts.Timeout,
		hooks:           opts.Hooks,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
	}, nil
}

// Name returns the router name.
func (r *Router) Name() string { return r.name }

// Description returns the router description.
func (r *Router) Description() string { return r.description }

// Flow returns a copy of the validated flow.
func (r *Router) Flow() flow.Flow {
	out := make(flow.Flow, len(r.flow))
	copy(out, r.flow)
	return out
}

// Run executes the flow against task and returns the output of the last agent.
func (r *Router) Run(ctx context.Context, task string) (string, error) {
	res, err := r.Execute(ctx, task)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// Execute executes the flow against task and returns the full transcript.
//
// On failure the partial Result (status RunFailed, completed steps only) is
// returned together with the error. A failing agent is reported as a
// *core.GenerationError naming the agent and its position; later agents are
// never invoked.
func (r *Router) Execute(ctx context.Context, task string) (*Result, error) {
	if strings.TrimSpace(task) == "" {
		return nil, fmt.Errorf("task: %w", core.ErrEmptyInput)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	logger := logging.With(r.logger, "run_id", runID, "router", r.name)
	total := len(r.agents)

	res := &Result{RunID: runID, Task: task, Status: core.RunIdle}
	tr := newTranscript(r.handoffPolicy, task)

	logger.Info("router.run.start", "flow", r.flow.String(), "loops", r.loops)
	start := time.Now()
	res.Status = core.RunRunning

	var last core.RunInfo
	for loop := 1; loop <= r.loops; loop++ {
		for i, a := range r.agents {
			info := core.RunInfo{RunID: runID, Task: task, Agent: a.Name(), Step: i + 1, Total: total, Loop: loop}
			last = info

			step, err := r.step(core.WithRunInfo(ctx, info), logger, info, tr)
			if err != nil {
				return r.fail(ctx, logger, res, info, err)
			}

			res.Steps = append(res.Steps, step)
			tr.Record(a.Name(), step.Output)
			res.Output = step.Output
		}
	}

	res.Status = core.RunCompleted
	r.metrics.ObserveRun(metrics.StatusSuccess)
	logger.Info("router.run.complete", "steps", len(res.Steps), "duration", time.Since(start))

	if err := r.hooks.Execute(ctx, HookOnComplete, &HookContext{
		Info:     last,
		Status:   res.Status,
		Output:   res.Output,
		Duration: time.Since(start),
	}); err != nil {
		logger.Warn("router.hook.error", "hook", HookOnComplete, "error", err)
	}

	return res, nil
}

// step runs the agent at info.Step: retrieval, BeforeStep hooks, Respond,
// AfterStep hooks.
func (r *Router) step(ctx context.Context, logger logging.Logger, info core.RunInfo, tr *transcript) (Step, error) {
	a := r.agents[info.Step-1]
	step := Step{Agent: info.Agent, Step: info.Step, Total: info.Total, Loop: info.Loop, Input: tr.Input()}

	if err := ctx.Err(); err != nil {
		return step, fmt.Errorf("run aborted before %s: %w", info, err)
	}

	logger.Debug("router.step.start", "agent", info.Agent, "step", info.Step, "total", info.Total, "loop", info.Loop)
	start := time.Now()

	step.Retrieved = r.retrieve(ctx, logger, info, step.Input)

	if err := r.hooks.Execute(ctx, HookBeforeStep, &HookContext{
		Info:      info,
		Status:    core.RunRunning,
		Input:     step.Input,
		Retrieved: step.Retrieved,
	}); err != nil {
		return step, fmt.Errorf("%s hook: %w", HookBeforeStep, err)
	}

	output, err := a.Respond(ctx, step.Input, step.Retrieved)
	step.Duration = time.Since(start)
	if err != nil {
		r.metrics.ObserveStep(info.Agent, metrics.StatusError, step.Duration)
		return step, generationError(info, err)
	}
	if strings.TrimSpace(output) == "" {
		r.metrics.ObserveStep(info.Agent, metrics.StatusError, step.Duration)
		return step, generationError(info, errors.New("agent returned empty output"))
	}
	step.Output = output

	r.metrics.ObserveStep(info.Agent, metrics.StatusSuccess, step.Duration)
	logger.Info("router.step.complete", "agent", info.Agent, "step", info.Step, "total", info.Total, "duration", step.Duration)

	if err := r.hooks.Execute(ctx, HookAfterStep, &HookContext{
		Info:      info,
		Status:    core.RunRunning,
		Input:     step.Input,
		Retrieved: step.Retrieved,
		Output:    step.Output,
		Duration:  step.Duration,
	}); err != nil {
		return step, fmt.Errorf("%s hook: %w", HookAfterStep, err)
	}

	return step, nil
}

// retrieve queries the retriever according to the retrieval policy. Errors
// degrade to empty context.
func (r *Router) retrieve(ctx context.Context, logger logging.Logger, info core.RunInfo, input string) string {
	if r.retriever == nil {
		return ""
	}

	var query string
	switch r.retrievalPolicy {
	case RetrieveCurrentInput:
		query = input
	case RetrieveTask:
		query = info.Task
	default:
		return ""
	}

	retrieved, err := r.retriever.Query(ctx, query)
	if err != nil {
		r.metrics.IncRetrievalDegraded()
		logger.Warn("router.retrieval.degraded", "agent", info.Agent, "step", info.Step, "error", err)
		return ""
	}

	logger.Debug("router.retrieval.complete", "agent", info.Agent, "step", info.Step, "bytes", len(retrieved))

	return retrieved
}

func (r *Router) fail(ctx context.Context, logger logging.Logger, res *Result, info core.RunInfo, err error) (*Result, error) {
	res.Status = core.RunFailed
	r.metrics.ObserveRun(metrics.StatusError)
	logger.Error("router.run.failed", "agent", info.Agent, "step", info.Step, "total", info.Total, "error", err)

	if hookErr := r.hooks.Execute(ctx, HookOnError, &HookContext{
		Info:   info,
		Status: res.Status,
		Err:    err,
	}); hookErr != nil {
		logger.Warn("router.hook.error", "hook", HookOnError, "error", hookErr)
	}

	return res, err
}

// generationError attaches the step position to err, reusing an existing
// *core.GenerationError from the agent.
func generationError(info core.RunInfo, err error) error {
	var ge *core.GenerationError
	if errors.As(err, &ge) && ge.Agent == info.Agent {
		return &core.GenerationError{Agent: info.Agent, Step: info.Step, Total: info.Total, Err: ge.Err}
	}
	return &core.GenerationError{Agent: info.Agent, Step: info.Step, Total: info.Total, Err: err}
}
