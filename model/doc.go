// Package model defines the provider-agnostic abstractions for interacting
// with language models inside ragflow.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI compatible endpoints, Anthropic, Ollama, Gemini) implement
// the Model interface in sub packages so agents and the router remain
// decoupled from vendor SDKs.
package model
