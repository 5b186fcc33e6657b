package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/logging"
)

// PineconeStoreOptions configures a PineconeStore.
type PineconeStoreOptions struct {
	APIKey string
	// Host overrides the Pinecone control plane API host.
	Host      string
	IndexName string
	// IndexHost skips the DescribeIndex lookup when set.
	IndexHost string
	Namespace string
	TopK      int
	// ScoreThreshold drops matches scoring below it.
	ScoreThreshold float32
	// BatchSize bounds the vectors sent per upsert call.
	BatchSize int
	// Embed vectorizes documents and queries. Required.
	Embed  chromem.EmbeddingFunc
	Logger logging.Logger
}

// vectorIndex is the subset of *pinecone.IndexConnection used by the store.
type vectorIndex interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	Close() error
}

// PineconeStore retrieves context from an existing Pinecone index. Document
// text is stored in the "text" metadata field of each vector.
type PineconeStore struct {
	opts    PineconeStoreOptions
	client  *pinecone.Client
	logger  logging.Logger
	connect func(ctx context.Context) (vectorIndex, error)

	mu   sync.Mutex
	host string
}

// NewPineconeStore creates a store for the configured index. No network
// call is made until the first query or upsert.
func NewPineconeStore(optFns ...func(o *PineconeStoreOptions)) (*PineconeStore, error) {
	opts := PineconeStoreOptions{
		TopK:           10,
		ScoreThreshold: 0.7,
		BatchSize:      100,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, core.NewConfigurationError("memory.pinecone.api_key", "API key is required for Pinecone")
	}
	if opts.IndexName == "" && opts.IndexHost == "" {
		return nil, core.NewConfigurationError("memory.pinecone.index", "index name or index host is required")
	}
	if opts.TopK < 1 {
		return nil, core.NewConfigurationError("memory.top_k", "top_k must be positive, got %d", opts.TopK)
	}
	if opts.Embed == nil {
		return nil, core.NewConfigurationError("memory.embedder", "an embedding function is required")
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 100
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	params := pinecone.NewClientParams{ApiKey: opts.APIKey}
	if opts.Host != "" {
		params.Host = opts.Host
	}

	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	s := &PineconeStore{opts: opts, client: client, logger: opts.Logger, host: opts.IndexHost}
	s.connect = s.indexConnection

	return s, nil
}

// Compile-time check.
var _ core.Retriever = (*PineconeStore)(nil)

func (s *PineconeStore) indexConnection(ctx context.Context) (vectorIndex, error) {
	s.mu.Lock()
	host := s.host
	s.mu.Unlock()

	if host == "" {
		index, err := s.client.DescribeIndex(ctx, s.opts.IndexName)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", s.opts.IndexName, err)
		}
		host = index.Host

		s.mu.Lock()
		s.host = host
		s.mu.Unlock()
	}

	conn, err := s.client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: s.opts.Namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}

	return conn, nil
}

// Search returns up to limit matches scoring at least the threshold.
func (s *PineconeStore) Search(ctx context.Context, text string, limit int) ([]core.SearchResult, error) {
	if strings.TrimSpace(text) == "" || limit < 1 {
		return []core.SearchResult{}, nil
	}

	vector, err := s.opts.Embed(ctx, text)
	if err != nil {
		return nil, &core.RetrievalError{Store: "pinecone", Err: fmt.Errorf("failed to embed query: %w", err)}
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return nil, &core.RetrievalError{Store: "pinecone", Err: err}
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(limit),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, &core.RetrievalError{Store: "pinecone", Err: fmt.Errorf("failed to query Pinecone: %w", err)}
	}

	results := make([]core.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil || m.Score < s.opts.ScoreThreshold {
			continue
		}

		metadata := map[string]any{}
		if m.Vector.Metadata != nil {
			metadata = m.Vector.Metadata.AsMap()
		}
		content, _ := metadata["text"].(string)
		if content == "" {
			continue
		}

		results = append(results, core.SearchResult{
			ID:       m.Vector.Id,
			Content:  content,
			Score:    float64(m.Score),
			Metadata: metadata,
		})
	}

	return results, nil
}

// Query implements core.Retriever.
func (s *PineconeStore) Query(ctx context.Context, text string) (string, error) {
	results, err := s.Search(ctx, text, s.opts.TopK)
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}

// Index embeds docs and upserts them in batches. It returns the number of
// vectors written.
func (s *PineconeStore) Index(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	written := 0
	for start := 0; start < len(docs); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(docs))

		batch := make([]*pinecone.Vector, 0, end-start)
		for _, d := range docs[start:end] {
			values, err := s.opts.Embed(ctx, d.Content)
			if err != nil {
				return written, fmt.Errorf("failed to embed document %s: %w", d.ID, err)
			}

			md := make(map[string]any, len(d.Metadata)+1)
			for k, v := range d.Metadata {
				md[k] = v
			}
			md["text"] = d.Content

			metadata, err := structpb.NewStruct(md)
			if err != nil {
				return written, fmt.Errorf("failed to convert metadata: %w", err)
			}

			batch = append(batch, &pinecone.Vector{Id: d.ID, Values: values, Metadata: metadata})
		}

		n, err := conn.UpsertVectors(ctx, batch)
		if err != nil {
			return written, fmt.Errorf("failed to upsert vectors: %w", err)
		}
		written += int(n)

		s.logger.Debug("memory.pinecone.upsert", "index", s.opts.IndexName, "batch", len(batch), "written", written)
	}

	s.logger.Info("memory.pinecone.indexed", "index", s.opts.IndexName, "namespace", s.opts.Namespace, "documents", written)

	return written, nil
}

// Delete removes the vectors with the given IDs from the namespace.
func (s *PineconeStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	s.logger.Info("memory.pinecone.deleted", "index", s.opts.IndexName, "namespace", s.opts.Namespace, "vectors", len(ids))

	return nil
}
