package core

import "context"

// Retriever is the read-only query capability over a document index.
//
// Query returns a textual context assembled from the most relevant indexed
// documents. An empty index yields an empty string and no error. Errors are
// reserved for an unreachable or unreadable backend; callers treat them as a
// degradation, not a failure. Implementations must be safe for concurrent use.
type Retriever interface {
	Query(ctx context.Context, text string) (string, error)
}

// RetrieverFunc adapts an ordinary function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, text string) (string, error)

// Query implements Retriever.
func (f RetrieverFunc) Query(ctx context.Context, text string) (string, error) { return f(ctx, text) }

// SearchResult represents a retrieved document with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
