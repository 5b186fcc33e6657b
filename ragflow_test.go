package ragflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragflow/config"
	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/internal/testutil"
	"github.com/hupe1980/ragflow/logging"
	"github.com/hupe1980/ragflow/metrics"
	"github.com/hupe1980/ragflow/model"
)

func mockConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
name: test-team
backends:
  local:
    provider: mock
    responses:
      T: X
      X: Y
      Y: Z
agents:
  - name: A
    backend: local
    instruction: "You are {{.Agent}}, step {{.Step}} of {{.Total}}."
  - name: B
    backend: local
    instruction: second
  - name: C
    backend: local
    instruction: third
flow: A -> B -> C
` + extra))
	require.NoError(t, err)
	return cfg
}

func TestPipeline_Run(t *testing.T) {
	p, err := New(context.Background(), mockConfig(t, ""), func(o *Options) { o.Logger = logging.NoOpLogger{} })
	require.NoError(t, err)

	out, err := p.Run(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "Z", out)

	assert.Equal(t, []string{"A", "B", "C"}, p.Registry().Names())
	assert.Equal(t, "test-team", p.Router().Name())
	assert.Nil(t, p.Store())
}

func TestPipeline_InstructionTemplate(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("T", "X")

	p, err := New(context.Background(), mockConfig(t, ""), func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Models = map[string]model.Model{"local": llm}
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "T")
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "You are A, step 1 of 3.", reqs[0].Instructions)
	assert.Equal(t, "second", reqs[1].Instructions)
}

func TestPipeline_KeywordRetrieval(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"lucas.md":          "Lucas Brown reports chest pain and elevated troponin.",
		"notes/allergy.txt": "Lucas Brown is allergic to penicillin.",
		"unrelated.md":      "Quarterly budget review.",
	})

	llm := model.NewMockModel("mock", "mock")
	p, err := New(context.Background(), mockConfig(t, "memory:\n  type: keyword\n  dir: "+dir+"\n  recursive: true\n  filename_as_id: true\n"), func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Models = map[string]model.Model{"local": llm}
	})
	require.NoError(t, err)
	require.NotNil(t, p.Store())

	_, err = p.Run(context.Background(), "Lucas Brown")
	require.NoError(t, err)

	first := llm.Requests()[0]
	require.Len(t, first.Messages, 2)
	ctxMsg := first.Messages[0].Text
	assert.True(t, strings.HasPrefix(ctxMsg, "Relevant context:\n\n"))
	assert.Contains(t, ctxMsg, "[lucas.md]")
	assert.Contains(t, ctxMsg, "[notes/allergy.txt]")
	assert.NotContains(t, ctxMsg, "budget")
	assert.Equal(t, "Lucas Brown", first.Messages[1].Text)
}

func TestPipeline_ChromemRetrieval(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"cardiology.md": "troponin chest pain myocardial infarction",
		"dermatology.md": "rash eczema itching skin",
	})

	llm := model.NewMockModel("mock", "mock")
	cfg := mockConfig(t, "memory:\n  type: chromem\n  dir: "+dir+"\n  filename_as_id: true\n  top_k: 1\n  embedder:\n    provider: ollama\n")
	p, err := New(context.Background(), cfg, func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Models = map[string]model.Model{"local": llm}
		o.Embed = testutil.HashEmbedding(64)
		o.CountTokens = memoryEstimate
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "troponin chest pain")
	require.NoError(t, err)

	first := llm.Requests()[0]
	require.Len(t, first.Messages, 2)
	assert.Contains(t, first.Messages[0].Text, "[cardiology.md]")
	assert.NotContains(t, first.Messages[0].Text, "dermatology")

	n, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPipeline_EmptyDirectoryBehavesLikeNoRetrieval(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("T", "X")

	cfg := mockConfig(t, "memory:\n  type: keyword\n  dir: "+t.TempDir()+"\n")
	p, err := New(context.Background(), cfg, func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Models = map[string]model.Model{"local": llm}
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "T")
	require.NoError(t, err)
	assert.Len(t, llm.Requests()[0].Messages, 1)
}

func TestPipeline_FailureStopsFlow(t *testing.T) {
	boom := errors.New("rate limited")
	llm := model.NewMockModel("mock", "mock")
	llm.FailWith(boom)

	reg := prometheus.NewRegistry()
	p, err := New(context.Background(), mockConfig(t, ""), func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Models = map[string]model.Model{"local": llm}
		o.Metrics = metrics.NewPrometheusRecorder(reg)
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "T")
	require.Error(t, err)

	var genErr *core.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "A", genErr.Agent)
	assert.Equal(t, 1, genErr.Step)
	assert.Equal(t, 3, genErr.Total)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, llm.Requests(), 1)

	count, err := promtestutil.GatherAndCount(reg, "ragflow_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPipeline_InvalidConfig(t *testing.T) {
	cfg := mockConfig(t, "")
	cfg.Flow = "A -> Ghost"

	_, err := New(context.Background(), cfg, func(o *Options) { o.Logger = logging.NoOpLogger{} })
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = New(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestPipeline_Streaming(t *testing.T) {
	var chunks []string
	p, err := New(context.Background(), mockConfig(t, ""), func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Stream = true
		o.OnChunk = func(agent, chunk string) { chunks = append(chunks, agent+":"+chunk) }
	})
	require.NoError(t, err)

	out, err := p.Run(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "Z", out)
	assert.Equal(t, []string{"A:X", "B:Y", "C:Z"}, chunks)
}

func TestNewModel(t *testing.T) {
	temp := 0.1
	tests := []struct {
		backend  config.BackendConfig
		provider string
	}{
		{backend: config.BackendConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k"}, provider: "openai"},
		{backend: config.BackendConfig{Provider: config.ProviderGroq, Model: "llama-3.1-70b-versatile", APIKey: "k", Temperature: &temp}, provider: "groq"},
		{backend: config.BackendConfig{Provider: config.ProviderAnthropic, Model: "claude-3-5-sonnet-20241022", APIKey: "k"}, provider: "anthropic"},
		{backend: config.BackendConfig{Provider: config.ProviderGemini, Model: "gemini-2.0-flash", APIKey: "k"}, provider: "gemini"},
		{backend: config.BackendConfig{Provider: config.ProviderOllama, Model: "llama3.1"}, provider: "ollama"},
		{backend: config.BackendConfig{Provider: config.ProviderMock, Model: "mock"}, provider: "mock"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			b := tt.backend
			m, err := NewModel(&b)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, m.Info().Provider)
			assert.Equal(t, b.Model, m.Info().Name)
		})
	}

	_, err := NewModel(&config.BackendConfig{Provider: "cohere"})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func memoryEstimate(text string) int { return len(text) / 4 }
