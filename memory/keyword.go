package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/ragflow/core"
)

// KeywordStoreOptions configures a KeywordStore.
type KeywordStoreOptions struct {
	TopK int
}

// KeywordStore is a naive process-local document index.
//
// Search scores a document by the fraction of distinct query terms it
// contains (case-insensitive). Documents without any matching term are never
// returned. Ties are broken by ID. Suitable for tests, demos and offline
// runs; use DirectoryStore or PineconeStore for semantic retrieval.
//
// Concurrency: protected by RWMutex.
type KeywordStore struct {
	mu    sync.RWMutex
	topK  int
	docs  map[string]Document
	terms map[string]map[string]struct{} // doc id -> term set
}

// NewKeywordStore creates an empty KeywordStore returning up to 10 documents.
func NewKeywordStore(optFns ...func(o *KeywordStoreOptions)) *KeywordStore {
	opts := KeywordStoreOptions{TopK: 10}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TopK < 1 {
		opts.TopK = 1
	}
	return &KeywordStore{
		topK:  opts.TopK,
		docs:  make(map[string]Document),
		terms: make(map[string]map[string]struct{}),
	}
}

// Compile-time check.
var _ core.Retriever = (*KeywordStore)(nil)

// Add indexes docs, replacing documents with the same ID.
func (s *KeywordStore) Add(docs ...Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.docs[d.ID] = d
		set := make(map[string]struct{})
		for _, t := range tokenize(d.Content) {
			set[t] = struct{}{}
		}
		s.terms[d.ID] = set
	}
}

// Delete removes a document by ID.
func (s *KeywordStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[id]; !exists {
		return fmt.Errorf("document %q not found", id)
	}
	delete(s.docs, id)
	delete(s.terms, id)
	return nil
}

// Count returns the number of indexed documents.
func (s *KeywordStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Search returns up to limit matching documents ordered by descending score.
func (s *KeywordStore) Search(_ context.Context, query string, limit int) ([]core.SearchResult, error) {
	queryTerms := uniqueTerms(query)
	if len(queryTerms) == 0 || limit < 1 {
		return []core.SearchResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]core.SearchResult, 0, limit)
	for id, set := range s.terms {
		hits := 0
		for _, t := range queryTerms {
			if _, ok := set[t]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		d := s.docs[id]
		results = append(results, core.SearchResult{
			ID:       d.ID,
			Content:  d.Content,
			Score:    float64(hits) / float64(len(queryTerms)),
			Metadata: copyMetadata(d.Metadata),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Query implements core.Retriever.
func (s *KeywordStore) Query(ctx context.Context, text string) (string, error) {
	results, err := s.Search(ctx, text, s.topK)
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniqueTerms(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tokenize(text) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
