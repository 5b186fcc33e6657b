package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragflow/internal/testutil"
)

func writeDocs(t *testing.T) string {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"cardiology.txt":         "Atrial fibrillation is treated with anticoagulants.",
		"notes.md":               "# Notes\nPatient reports chest pain.",
		"image.png":              "not text",
		"empty.txt":              "   ",
		".hidden.txt":            "secret",
		"sub/neurology.txt":      "Migraine presents with aura.",
		".cache/ignored.txt":     "cached",
		"sub/deeper/endocrin.md": "Type 2 diabetes responds to metformin.",
	})
	return dir
}

func TestLoadDirectory_NonRecursive(t *testing.T) {
	docs, err := LoadDirectory(context.Background(), writeDocs(t), func(o *LoaderOptions) {
		o.FilenameAsID = true
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"cardiology.txt", "notes.md"}, ids)
	assert.Equal(t, "cardiology.txt", docs[0].Metadata["file_name"])
}

func TestLoadDirectory_Recursive(t *testing.T) {
	docs, err := LoadDirectory(context.Background(), writeDocs(t), func(o *LoaderOptions) {
		o.Recursive = true
		o.FilenameAsID = true
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"cardiology.txt", "notes.md", "sub/deeper/endocrin.md", "sub/neurology.txt"}, ids)
}

func TestLoadDirectory_ContentIDs(t *testing.T) {
	docs, err := LoadDirectory(context.Background(), writeDocs(t))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, ContentID(docs[0].Content), docs[0].ID)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
	assert.Equal(t, ContentID("same"), ContentID("same"))
}

func TestLoadDirectory_Extensions(t *testing.T) {
	docs, err := LoadDirectory(context.Background(), writeDocs(t), func(o *LoaderOptions) {
		o.Extensions = []string{"MD"}
		o.FilenameAsID = true
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.md", docs[0].ID)
}

func TestLoadDirectory_EmptyExtensionsUseDefaults(t *testing.T) {
	for _, exts := range [][]string{nil, {}} {
		docs, err := LoadDirectory(context.Background(), writeDocs(t), func(o *LoaderOptions) {
			o.Extensions = exts
			o.FilenameAsID = true
		})
		require.NoError(t, err)

		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		assert.Equal(t, []string{"cardiology.txt", "notes.md"}, ids)
	}
}

func TestLoadDirectory_SkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"small.txt": "short",
		"large.txt": "this document is far too long for the limit",
	})

	docs, err := LoadDirectory(context.Background(), dir, func(o *LoaderOptions) {
		o.FilenameAsID = true
		o.MaxTokens = 3
		o.CountTokens = func(text string) int { return len(text) / 5 }
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "small.txt", docs[0].ID)
}

func TestLoadDirectory_Errors(t *testing.T) {
	_, err := LoadDirectory(context.Background(), "/does/not/exist")
	assert.Error(t, err)

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"file.txt": "x"})
	_, err = LoadDirectory(context.Background(), dir+"/file.txt")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LoadDirectory(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenCounter(t *testing.T) {
	tc := NewTokenCounter("text-embedding-3-small")
	assert.Equal(t, 0, tc.Count(""))
	assert.Positive(t, tc.Count("The patient presents with chest pain."))
	assert.Equal(t, "text-embedding-3-small", tc.Model())

	var nilCounter *TokenCounter
	assert.Equal(t, 2, nilCounter.Count("12345678"))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
}
