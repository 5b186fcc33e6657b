package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/logging"
)

// DirectoryStoreOptions configures a DirectoryStore.
type DirectoryStoreOptions struct {
	// Collection names the chromem collection holding the directory.
	Collection string
	TopK       int
	// PersistDir stores the index on disk. Empty keeps it in memory only.
	PersistDir string
	// Compress gzips the persisted index.
	Compress bool
	// Embed vectorizes documents and queries. Required.
	Embed  chromem.EmbeddingFunc
	Loader LoaderOptions
	Logger logging.Logger
}

// DirectoryStore indexes the text files of a directory into a chromem-go
// collection and answers similarity queries over it.
type DirectoryStore struct {
	dir    string
	opts   DirectoryStoreOptions
	db     *chromem.DB
	col    *chromem.Collection
	logger logging.Logger
}

// NewDirectoryStore opens (or creates) the index for dir. Documents are not
// loaded until Index is called; a persisted index is available immediately.
func NewDirectoryStore(dir string, optFns ...func(o *DirectoryStoreOptions)) (*DirectoryStore, error) {
	opts := DirectoryStoreOptions{
		Collection: "documents",
		TopK:       10,
		Loader: LoaderOptions{
			Extensions: DefaultExtensions,
			MaxTokens:  DefaultEmbeddingTokenLimit,
		},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if strings.TrimSpace(dir) == "" {
		return nil, core.NewConfigurationError("memory.dir", "document directory must not be empty")
	}
	if opts.TopK < 1 {
		return nil, core.NewConfigurationError("memory.top_k", "top_k must be positive, got %d", opts.TopK)
	}
	if opts.Embed == nil {
		return nil, core.NewConfigurationError("memory.embedder", "an embedding function is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	db := chromem.NewDB()
	if opts.PersistDir != "" {
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(opts.PersistDir, "chromem"), opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(opts.Collection, map[string]string{"dir": dir}, opts.Embed)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", opts.Collection, err)
	}

	opts.Logger.Debug("memory.directory.open",
		"dir", dir,
		"collection", opts.Collection,
		"persist_dir", opts.PersistDir,
		"documents", col.Count(),
	)

	return &DirectoryStore{dir: dir, opts: opts, db: db, col: col, logger: opts.Logger}, nil
}

// Compile-time check.
var _ core.Retriever = (*DirectoryStore)(nil)

// Index loads the directory and embeds its documents. Documents with an
// existing ID are replaced. It returns the number of documents indexed.
func (s *DirectoryStore) Index(ctx context.Context) (int, error) {
	docs, err := LoadDirectory(ctx, s.dir, func(o *LoaderOptions) {
		*o = s.opts.Loader
		if o.Logger == nil {
			o.Logger = s.logger
		}
	})
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		s.logger.Warn("memory.directory.empty", "dir", s.dir)
		return 0, nil
	}

	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		chromemDocs = append(chromemDocs, chromem.Document{ID: d.ID, Content: d.Content, Metadata: d.Metadata})
	}

	if err := s.col.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("failed to index documents: %w", err)
	}

	s.logger.Info("memory.directory.indexed", "dir", s.dir, "documents", len(docs))

	return len(docs), nil
}

// Count returns the number of indexed documents.
func (s *DirectoryStore) Count() int { return s.col.Count() }

// Search returns up to limit documents most similar to text.
func (s *DirectoryStore) Search(ctx context.Context, text string, limit int) ([]core.SearchResult, error) {
	if strings.TrimSpace(text) == "" || limit < 1 {
		return []core.SearchResult{}, nil
	}

	n := min(limit, s.col.Count())
	if n == 0 {
		return []core.SearchResult{}, nil
	}

	res, err := s.col.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, &core.RetrievalError{Store: "chromem", Err: err}
	}

	out := make([]core.SearchResult, 0, len(res))
	for _, r := range res {
		out = append(out, core.SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: copyMetadata(r.Metadata),
		})
	}

	return out, nil
}

// Query implements core.Retriever.
func (s *DirectoryStore) Query(ctx context.Context, text string) (string, error) {
	results, err := s.Search(ctx, text, s.opts.TopK)
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}
