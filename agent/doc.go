// Package agent contains the model-backed agent used by ragflow pipelines and
// the registry that resolves flow identifiers to agents.
//
// A ModelAgent pairs a role (system prompt, optionally a text/template
// rendered with the current run info) with a model.Model backend. It turns
// one input plus retrieved context into one output. Agents hold no mutable
// per-run state, so a single instance may appear several times in a flow and
// serve concurrent runs.
package agent
