package memory

import (
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/hupe1980/ragflow/core"
)

// Embedding providers understood by NewEmbeddingFunc.
const (
	EmbedderOpenAI       = "openai"
	EmbedderOllama       = "ollama"
	EmbedderOpenAICompat = "openai-compat"
)

// EmbedderOptions selects and configures an embedding backend.
type EmbedderOptions struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL is required for openai-compat. For ollama it defaults to the
	// local server's API root.
	BaseURL string
}

// NewEmbeddingFunc builds a chromem embedding function. Stores use it both to
// index documents and to embed queries.
func NewEmbeddingFunc(opts EmbedderOptions) (chromem.EmbeddingFunc, error) {
	switch strings.ToLower(opts.Provider) {
	case "", EmbedderOpenAI:
		if opts.APIKey == "" {
			return nil, core.NewConfigurationError("memory.embedder.api_key", "openai embeddings require an API key")
		}
		model := chromem.EmbeddingModelOpenAI3Small
		if opts.Model != "" {
			model = chromem.EmbeddingModelOpenAI(opts.Model)
		}
		return chromem.NewEmbeddingFuncOpenAI(opts.APIKey, model), nil
	case EmbedderOllama:
		model := opts.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return chromem.NewEmbeddingFuncOllama(model, opts.BaseURL), nil
	case EmbedderOpenAICompat:
		if opts.BaseURL == "" {
			return nil, core.NewConfigurationError("memory.embedder.base_url", "openai-compat embeddings require a base URL")
		}
		if opts.Model == "" {
			return nil, core.NewConfigurationError("memory.embedder.model", "openai-compat embeddings require a model")
		}
		return chromem.NewEmbeddingFuncOpenAICompat(opts.BaseURL, opts.APIKey, opts.Model, nil), nil
	default:
		return nil, core.NewConfigurationError("memory.embedder.provider", "unknown embedding provider %q", opts.Provider)
	}
}
