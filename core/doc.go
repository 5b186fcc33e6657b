// Package core provides the foundational domain types and capability
// interfaces used by ragflow. It defines the core abstractions for:
//
//   - Agents (named units turning input text into output text)
//   - Retrievers (read-only document stores queried for context)
//   - Messages exchanged with language-model backends
//   - Run information carried through a context.Context during one run
//   - The error taxonomy shared by construction and execution paths
//
// The package intentionally keeps implementation concerns (model vendors,
// vector databases, routing) out of scope, exposing small interfaces so
// alternative backends can be substituted without touching the router.
package core
