// Package runner implements the sequential router at the heart of ragflow.
//
// A Router owns a validated flow of agents. For every run it walks the flow
// in order: it retrieves context for the step, hands the current input and
// the retrieved context to the agent, and passes the agent's output on as the
// next input. The output of the last agent is the result of the run.
//
// # Run lifecycle
//
//	Idle -> Running(step i of N) -> Completed | Failed
//
// The first failing agent aborts the run; no later agent is invoked. Hooks
// (BeforeStep, AfterStep, OnError, OnComplete) observe every transition.
//
// # Policies
//   - RetrievalPolicy: query with the current input (default), the original
//     task, or not at all. Retrieval errors degrade to empty context.
//   - HandoffPolicy: pass only the latest output (default) or the task plus
//     all prior outputs.
package runner
