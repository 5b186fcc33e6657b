package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/model"
)

func TestModel_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3.1","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"care plan"},"done":true,"done_reason":"stop","prompt_eval_count":4,"eval_count":2}`+"\n")
	}))
	defer srv.Close()

	m, err := NewModel(func(o *Options) { o.Host = srv.URL })
	require.NoError(t, err)

	res, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "role",
		Messages:     []core.Message{core.UserMessage("task")},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "care plan", res.Text)
	assert.Equal(t, "stop", res.FinishReason)
	assert.Equal(t, 6, res.Usage.TotalTokens)

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, false, got["stream"])
}

func TestNewModel_InvalidHost(t *testing.T) {
	_, err := NewModel(func(o *Options) { o.Host = "://bad" })
	assert.Error(t, err)
}
