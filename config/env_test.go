package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("RAGFLOW_SET", "value")
	t.Setenv("RAGFLOW_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "${RAGFLOW_SET}", want: "value"},
		{in: "${RAGFLOW_EMPTY}", want: ""},
		{in: "${RAGFLOW_SET:-fallback}", want: "value"},
		{in: "${RAGFLOW_EMPTY:-fallback}", want: "fallback"},
		{in: "prefix-${RAGFLOW_SET}-suffix", want: "prefix-value-suffix"},
		{in: "$RAGFLOW_SET", want: "$RAGFLOW_SET"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnv(tt.in), tt.in)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RAGFLOW_DOTENV=from-file\nRAGFLOW_PRESET=file\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("RAGFLOW_PRESET", "env")
	t.Setenv("RAGFLOW_DOTENV", "")
	require.NoError(t, os.Unsetenv("RAGFLOW_DOTENV"))

	require.NoError(t, LoadEnvFiles())
	assert.Equal(t, "from-file", os.Getenv("RAGFLOW_DOTENV"))
	assert.Equal(t, "env", os.Getenv("RAGFLOW_PRESET"))
}

func TestProviderAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google")
	t.Setenv("GROQ_API_KEY", "groq")

	assert.Equal(t, "google", ProviderAPIKey(ProviderGemini))
	assert.Equal(t, "groq", ProviderAPIKey(ProviderGroq))
	assert.Empty(t, ProviderAPIKey(ProviderOllama))
}
