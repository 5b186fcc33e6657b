package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/ragflow/core"
)

// StaticRetriever answers every query with Text (or Err) and records the
// query texts.
type StaticRetriever struct {
	Text string
	Err  error

	mu      sync.Mutex
	queries []string
}

// Query implements core.Retriever.
func (r *StaticRetriever) Query(_ context.Context, text string) (string, error) {
	r.mu.Lock()
	r.queries = append(r.queries, text)
	r.mu.Unlock()

	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Queries returns a copy of the recorded query texts.
func (r *StaticRetriever) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.queries))
	copy(out, r.queries)
	return out
}

// Compile-time check.
var _ core.Retriever = (*StaticRetriever)(nil)
