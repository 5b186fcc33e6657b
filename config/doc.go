// Package config loads the YAML description of a ragflow pipeline: model
// backends, agents, the flow between them, the document store and logging.
//
// Load reads .env.local and .env, expands ${VAR} and ${VAR:-default}
// references in string values, applies defaults and validates the result.
// A complete default configuration reproducing the medical team example is
// embedded in the binary and returned by Default.
package config
