package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/internal/testutil"
)

type fakeIndex struct {
	matches  []*pinecone.ScoredVector
	queryErr error
	queries  []*pinecone.QueryByVectorValuesRequest
	upserts  [][]*pinecone.Vector
	deleted  [][]string
	closed   int
}

func (f *fakeIndex) QueryByVectorValues(_ context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.queries = append(f.queries, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &pinecone.QueryVectorsResponse{Matches: f.matches}, nil
}

func (f *fakeIndex) UpsertVectors(_ context.Context, in []*pinecone.Vector) (uint32, error) {
	f.upserts = append(f.upserts, in)
	return uint32(len(in)), nil
}

func (f *fakeIndex) DeleteVectorsById(_ context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids)
	return nil
}

func (f *fakeIndex) Close() error {
	f.closed++
	return nil
}

func newPineconeStore(t *testing.T, idx *fakeIndex, optFns ...func(o *PineconeStoreOptions)) *PineconeStore {
	t.Helper()
	fns := append([]func(o *PineconeStoreOptions){func(o *PineconeStoreOptions) {
		o.APIKey = "pc-test"
		o.IndexName = "medical"
		o.Embed = testutil.HashEmbedding(8)
	}}, optFns...)
	s, err := NewPineconeStore(fns...)
	require.NoError(t, err)
	s.connect = func(context.Context) (vectorIndex, error) { return idx, nil }
	return s
}

func scored(t *testing.T, id, text string, score float32) *pinecone.ScoredVector {
	md, err := structpb.NewStruct(map[string]any{"text": text})
	require.NoError(t, err)
	return &pinecone.ScoredVector{Vector: &pinecone.Vector{Id: id, Metadata: md}, Score: score}
}

func TestPineconeStore_Query(t *testing.T) {
	idx := &fakeIndex{matches: []*pinecone.ScoredVector{
		scored(t, "doc-1", "atrial fibrillation", 0.92),
		scored(t, "doc-2", "anticoagulants", 0.71),
		scored(t, "doc-3", "unrelated", 0.40),
		{Vector: &pinecone.Vector{Id: "no-text"}, Score: 0.99},
		nil,
	}}
	s := newPineconeStore(t, idx, func(o *PineconeStoreOptions) { o.TopK = 5 })

	out, err := s.Query(context.Background(), "irregular heartbeat")
	require.NoError(t, err)
	assert.Equal(t, "[doc-1]\natrial fibrillation\n\n[doc-2]\nanticoagulants", out)

	require.Len(t, idx.queries, 1)
	assert.Equal(t, uint32(5), idx.queries[0].TopK)
	assert.True(t, idx.queries[0].IncludeMetadata)
	assert.Len(t, idx.queries[0].Vector, 8)
	assert.Equal(t, 1, idx.closed)
}

func TestPineconeStore_EmptyText(t *testing.T) {
	idx := &fakeIndex{}
	s := newPineconeStore(t, idx)

	out, err := s.Query(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, idx.queries)
}

func TestPineconeStore_QueryError(t *testing.T) {
	s := newPineconeStore(t, &fakeIndex{queryErr: errors.New("unavailable")})

	_, err := s.Query(context.Background(), "x")
	var retErr *core.RetrievalError
	require.ErrorAs(t, err, &retErr)
	assert.Equal(t, "pinecone", retErr.Store)
}

func TestPineconeStore_ConnectError(t *testing.T) {
	s := newPineconeStore(t, &fakeIndex{})
	s.connect = func(context.Context) (vectorIndex, error) { return nil, errors.New("dial failed") }

	_, err := s.Query(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrRetrieval)
}

func TestPineconeStore_IndexBatches(t *testing.T) {
	idx := &fakeIndex{}
	s := newPineconeStore(t, idx, func(o *PineconeStoreOptions) { o.BatchSize = 2 })

	docs := []Document{
		{ID: "a.txt", Content: "alpha", Metadata: map[string]string{"file_name": "a.txt"}},
		{ID: "b.txt", Content: "beta"},
		{ID: "c.txt", Content: "gamma"},
	}

	n, err := s.Index(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, idx.upserts, 2)
	assert.Len(t, idx.upserts[0], 2)
	assert.Len(t, idx.upserts[1], 1)

	first := idx.upserts[0][0]
	assert.Equal(t, "a.txt", first.Id)
	assert.Equal(t, "alpha", first.Metadata.AsMap()["text"])
	assert.Equal(t, "a.txt", first.Metadata.AsMap()["file_name"])
}

func TestPineconeStore_Delete(t *testing.T) {
	idx := &fakeIndex{}
	s := newPineconeStore(t, idx)

	require.NoError(t, s.Delete(context.Background()))
	assert.Empty(t, idx.deleted)
	assert.Equal(t, 0, idx.closed)

	require.NoError(t, s.Delete(context.Background(), "a.txt", "b.txt"))
	require.Len(t, idx.deleted, 1)
	assert.Equal(t, []string{"a.txt", "b.txt"}, idx.deleted[0])
	assert.Equal(t, 1, idx.closed)

	s.connect = func(context.Context) (vectorIndex, error) { return nil, errors.New("dial failed") }
	assert.Error(t, s.Delete(context.Background(), "a.txt"))
}

func TestNewPineconeStore_Validation(t *testing.T) {
	embed := testutil.HashEmbedding(8)
	cases := []func(o *PineconeStoreOptions){
		func(o *PineconeStoreOptions) { o.IndexName = "i"; o.Embed = embed },
		func(o *PineconeStoreOptions) { o.APIKey = "k"; o.Embed = embed },
		func(o *PineconeStoreOptions) { o.APIKey = "k"; o.IndexName = "i" },
		func(o *PineconeStoreOptions) { o.APIKey = "k"; o.IndexName = "i"; o.Embed = embed; o.TopK = 0 },
	}
	for _, fn := range cases {
		_, err := NewPineconeStore(fn)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	}
}
