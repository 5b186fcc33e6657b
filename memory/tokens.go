package memory

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEmbeddingTokenLimit is the input limit of the OpenAI embedding models.
const DefaultEmbeddingTokenLimit = 8191

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// TokenCounter counts tokens the way the embedding model will.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTokenCounter creates a counter for model. Unknown models use the
// cl100k_base encoding. When no encoding can be loaded the counter falls back
// to a length based estimate.
func NewTokenCounter(model string) *TokenCounter {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()
	if exists {
		return &TokenCounter{encoding: cached, model: model}
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &TokenCounter{model: model}
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Model returns the model name this counter is configured for.
func (tc *TokenCounter) Model() string { return tc.model }

// EstimateTokens approximates a token count as one token per four bytes.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
