package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/internal/testutil"
)

func newDirectoryStore(t *testing.T, dir string, optFns ...func(o *DirectoryStoreOptions)) *DirectoryStore {
	t.Helper()
	fns := append([]func(o *DirectoryStoreOptions){func(o *DirectoryStoreOptions) {
		o.Embed = testutil.HashEmbedding(64)
		o.Loader.FilenameAsID = true
		o.Loader.Recursive = true
	}}, optFns...)
	s, err := NewDirectoryStore(dir, fns...)
	require.NoError(t, err)
	return s
}

func TestDirectoryStore_IndexAndQuery(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"cardiology.txt":    "atrial fibrillation anticoagulants warfarin",
		"neurology.txt":     "migraine aura nausea photophobia",
		"sub/endocrine.txt": "diabetes metformin insulin glucose",
	})

	s := newDirectoryStore(t, dir, func(o *DirectoryStoreOptions) { o.TopK = 1 })

	n, err := s.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, s.Count())

	out, err := s.Query(context.Background(), "migraine with aura")
	require.NoError(t, err)
	assert.Equal(t, "[neurology.txt]\nmigraine aura nausea photophobia", out)

	res, err := s.Search(context.Background(), "metformin glucose", 10)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "sub/endocrine.txt", res[0].ID)
	assert.Equal(t, "endocrine.txt", res[0].Metadata["file_name"])
}

func TestDirectoryStore_ReindexIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	s := newDirectoryStore(t, dir)
	_, err := s.Index(context.Background())
	require.NoError(t, err)
	_, err = s.Index(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, s.Count())
}

func TestDirectoryStore_ReplacedLoaderOptions(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha", "b.md": "beta", "c.png": "binary"})

	s := newDirectoryStore(t, dir, func(o *DirectoryStoreOptions) {
		o.Loader = LoaderOptions{FilenameAsID: true}
	})
	n, err := s.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDirectoryStore_EmptyCases(t *testing.T) {
	s := newDirectoryStore(t, t.TempDir())

	n, err := s.Index(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	out, err := s.Query(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.Query(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDirectoryStore_TopKClampedToCount(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	s := newDirectoryStore(t, dir, func(o *DirectoryStoreOptions) { o.TopK = 10 })
	_, err := s.Index(context.Background())
	require.NoError(t, err)

	out, err := s.Query(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "["))
	assert.True(t, strings.HasPrefix(out, "[a.txt]\nalpha"))
}

func TestDirectoryStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	persist := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	s := newDirectoryStore(t, dir, func(o *DirectoryStoreOptions) { o.PersistDir = persist })
	_, err := s.Index(context.Background())
	require.NoError(t, err)

	reopened := newDirectoryStore(t, dir, func(o *DirectoryStoreOptions) { o.PersistDir = persist })
	assert.Equal(t, 2, reopened.Count())

	out, err := reopened.Query(context.Background(), "beta")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[b.txt]\nbeta"))
}

func TestDirectoryStore_EmbeddingFailureIsRetrievalError(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"a.txt": "alpha"})

	fail := false
	embed := testutil.HashEmbedding(16)
	s := newDirectoryStore(t, dir, func(o *DirectoryStoreOptions) {
		o.Embed = func(ctx context.Context, text string) ([]float32, error) {
			if fail {
				return nil, errors.New("embedding service unreachable")
			}
			return embed(ctx, text)
		}
	})
	_, err := s.Index(context.Background())
	require.NoError(t, err)

	fail = true
	_, err = s.Query(context.Background(), "alpha")
	assert.ErrorIs(t, err, core.ErrRetrieval)
}

func TestNewDirectoryStore_Validation(t *testing.T) {
	_, err := NewDirectoryStore("", func(o *DirectoryStoreOptions) { o.Embed = testutil.HashEmbedding(8) })
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = NewDirectoryStore("docs")
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = NewDirectoryStore("docs", func(o *DirectoryStoreOptions) {
		o.Embed = testutil.HashEmbedding(8)
		o.TopK = 0
	})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestNewEmbeddingFunc(t *testing.T) {
	fn, err := NewEmbeddingFunc(EmbedderOptions{Provider: EmbedderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, fn)

	fn, err = NewEmbeddingFunc(EmbedderOptions{Provider: EmbedderOllama})
	require.NoError(t, err)
	assert.NotNil(t, fn)

	fn, err = NewEmbeddingFunc(EmbedderOptions{Provider: EmbedderOpenAICompat, BaseURL: "http://localhost:8080/v1", Model: "bge"})
	require.NoError(t, err)
	assert.NotNil(t, fn)

	for _, opts := range []EmbedderOptions{
		{Provider: EmbedderOpenAI},
		{Provider: EmbedderOpenAICompat, Model: "bge"},
		{Provider: EmbedderOpenAICompat, BaseURL: "http://localhost"},
		{Provider: "cohere"},
	} {
		_, err := NewEmbeddingFunc(opts)
		assert.ErrorIs(t, err, core.ErrConfiguration, opts.Provider)
	}
}
