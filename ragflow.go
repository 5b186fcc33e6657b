// Package ragflow wires a configured multi-agent pipeline: model backends,
// agents, the document store they retrieve from and the sequential router
// that passes a task through them.
//
// Most applications build a Pipeline from a config.Config and call Run:
//
//	cfg, err := config.Load("ragflow.yaml")
//	if err != nil { ... }
//	p, err := ragflow.New(ctx, cfg)
//	if err != nil { ... }
//	out, err := p.Run(ctx, "Patient Lucas Brown's medical data goes here.")
//
// The lower level packages (agent, flow, memory, runner) can also be used
// directly for pipelines assembled in code.
package ragflow

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"github.com/hupe1980/ragflow/agent"
	"github.com/hupe1980/ragflow/config"
	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/flow"
	"github.com/hupe1980/ragflow/logging"
	"github.com/hupe1980/ragflow/memory"
	"github.com/hupe1980/ragflow/metrics"
	"github.com/hupe1980/ragflow/model"
	"github.com/hupe1980/ragflow/model/anthropic"
	"github.com/hupe1980/ragflow/model/gemini"
	"github.com/hupe1980/ragflow/model/ollama"
	"github.com/hupe1980/ragflow/model/openai"
	"github.com/hupe1980/ragflow/runner"
)

// Options configures the Pipeline instance.
type Options struct {
	// Logger (defaults to the logger described by the config)
	Logger logging.Logger
	// Metrics receives run and step observations (defaults to NoOp).
	Metrics metrics.Recorder
	// Hooks observe the run lifecycle.
	Hooks *runner.HookManager

	// Models overrides backends by name, bypassing provider construction.
	Models map[string]model.Model
	// Embed overrides the configured embedding function of vector stores.
	Embed chromem.EmbeddingFunc
	// CountTokens overrides the tiktoken based document size check.
	CountTokens func(text string) int

	// Stream forces streamed generation for every agent.
	Stream bool
	// OnChunk receives streamed text from agents with streaming enabled.
	OnChunk func(agent, chunk string)

	// SkipAutoIndex leaves an empty chromem or keyword index empty at
	// construction.
	SkipAutoIndex bool
}

// Store is a retriever backed by an indexable document collection.
type Store interface {
	core.Retriever
	// Index (re)loads the configured directory and returns the number of
	// documents written.
	Index(ctx context.Context) (int, error)
}

// Pipeline is the assembled, validated pipeline. It is safe for concurrent
// Run calls.
type Pipeline struct {
	cfg      *config.Config
	registry *agent.Registry
	router   *runner.Router
	store    Store
	logger   logging.Logger
}

// New builds the pipeline described by cfg. The configuration is validated
// first; any violation is returned as a configuration error before a model
// or store is touched.
//
// An empty chromem or keyword store is indexed immediately unless
// SkipAutoIndex is set.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Pipeline, error) {
	if cfg == nil {
		return nil, core.NewConfigurationError("config", "config must not be nil")
	}

	opts := Options{Metrics: metrics.NoOpRecorder{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = cfg.Logger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := newStore(cfg, opts)
	if err != nil {
		return nil, err
	}

	registry, err := newRegistry(cfg, store, opts)
	if err != nil {
		return nil, err
	}

	f, err := flow.Parse(cfg.Flow)
	if err != nil {
		return nil, err
	}

	retrieval, err := runner.ParseRetrievalPolicy(cfg.Retrieval)
	if err != nil {
		return nil, err
	}
	handoff, err := runner.ParseHandoffPolicy(cfg.Handoff)
	if err != nil {
		return nil, err
	}

	router, err := runner.New(registry, f, func(o *runner.Options) {
		o.Name = cfg.Name
		o.Description = cfg.Description
		o.RetrievalPolicy = retrieval
		o.HandoffPolicy = handoff
		o.Loops = cfg.Loops
		o.Timeout = cfg.Timeout
		o.Hooks = opts.Hooks
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		if store != nil {
			o.Retriever = store
		}
	})
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, registry: registry, router: router, store: store, logger: opts.Logger}

	if needsIndex(store) && !opts.SkipAutoIndex {
		if _, err := store.Index(ctx); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", cfg.Memory.Dir, err)
		}
	}

	return p, nil
}

// Run passes task through the flow and returns the last agent's output.
func (p *Pipeline) Run(ctx context.Context, task string) (string, error) {
	return p.router.Run(ctx, task)
}

// Execute passes task through the flow and returns every step.
func (p *Pipeline) Execute(ctx context.Context, task string) (*runner.Result, error) {
	return p.router.Execute(ctx, task)
}

// Index (re)indexes the configured document directory. Without a configured
// store it returns 0 and no error.
func (p *Pipeline) Index(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, nil
	}
	return p.store.Index(ctx)
}

// Router returns the underlying router.
func (p *Pipeline) Router() *runner.Router { return p.router }

// Registry returns the agent registry.
func (p *Pipeline) Registry() *agent.Registry { return p.registry }

// Store returns the document store, or nil when retrieval is disabled.
func (p *Pipeline) Store() Store { return p.store }

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() *config.Config { return p.cfg }

// needsIndex reports whether store starts empty: an in-memory keyword store
// always does, a chromem store only without a persisted index. Pinecone
// indexes are populated explicitly.
func needsIndex(store Store) bool {
	switch s := store.(type) {
	case *memory.DirectoryStore:
		return s.Count() == 0
	case *keywordStore:
		return s.Count() == 0
	default:
		return false
	}
}

func newRegistry(cfg *config.Config, store Store, opts Options) (*agent.Registry, error) {
	models := make(map[string]model.Model, len(cfg.Backends))
	for name, m := range opts.Models {
		models[name] = m
	}

	registry, err := agent.NewRegistry()
	if err != nil {
		return nil, err
	}

	for _, ac := range cfg.Agents {
		llm, ok := models[ac.Backend]
		if !ok {
			llm, err = NewModel(cfg.Backends[ac.Backend])
			if err != nil {
				return nil, fmt.Errorf("backend %s: %w", ac.Backend, err)
			}
			models[ac.Backend] = llm
		}

		a := agent.NewModelAgent(ac.Name, llm, func(o *agent.ModelAgentOptions) {
			o.Instruction = agent.NewInstructionFromText(ac.Instruction)
			o.Description = ac.Description
			o.MaxTurns = ac.MaxTurns
			o.EnableStreaming = ac.Stream || opts.Stream
			o.OnChunk = opts.OnChunk
			o.Logger = opts.Logger
			if store != nil && ac.MaxTurns > 1 {
				o.Retriever = store
			}
		})

		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// NewModel constructs the model described by b.
func NewModel(b *config.BackendConfig) (model.Model, error) {
	if b == nil {
		return nil, core.NewConfigurationError("backend", "backend must not be nil")
	}

	switch b.Provider {
	case config.ProviderOpenAI, config.ProviderGroq:
		return openai.NewModel(func(o *openai.Options) {
			o.Provider = b.Provider
			o.Model = b.Model
			o.APIKey = b.APIKey
			o.BaseURL = b.BaseURL
			if b.Provider == config.ProviderGroq && o.BaseURL == "" {
				o.BaseURL = openai.GroqBaseURL
			}
			if b.Temperature != nil {
				o.Temperature = *b.Temperature
			}
			if b.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(b.MaxTokens)
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = b.Model
			o.APIKey = b.APIKey
			o.BaseURL = b.BaseURL
			if b.Temperature != nil {
				o.Temperature = *b.Temperature
			}
			if b.MaxTokens > 0 {
				o.MaxTokens = int64(b.MaxTokens)
			}
		}), nil
	case config.ProviderGemini:
		m, err := gemini.NewModel(func(o *gemini.Options) {
			o.Model = b.Model
			o.APIKey = b.APIKey
			if b.Temperature != nil {
				o.Temperature = float32(*b.Temperature)
			}
			if b.MaxTokens > 0 {
				o.MaxOutputTokens = int32(b.MaxTokens)
			}
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderOllama:
		m, err := ollama.NewModel(func(o *ollama.Options) {
			o.Model = b.Model
			if b.BaseURL != "" {
				o.Host = b.BaseURL
			}
			if b.Temperature != nil {
				o.Temperature = *b.Temperature
			}
			if b.MaxTokens > 0 {
				o.NumPredict = b.MaxTokens
			}
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderMock:
		m := model.NewMockModel(b.Model, config.ProviderMock)
		for prompt, response := range b.Responses {
			m.AddResponse(prompt, response)
		}
		return m, nil
	default:
		return nil, core.NewConfigurationError("provider", "unknown provider %q", b.Provider)
	}
}

func newStore(cfg *config.Config, opts Options) (Store, error) {
	mc := cfg.Memory
	loader := memory.LoaderOptions{
		Recursive:    mc.Recursive,
		FilenameAsID: mc.FilenameAsID,
		Extensions:   mc.Extensions,
		MaxTokens:    mc.MaxTokens,
		CountTokens:  opts.CountTokens,
		Logger:       opts.Logger,
	}

	switch mc.Type {
	case config.MemoryNone:
		return nil, nil
	case config.MemoryKeyword:
		return &keywordStore{
			KeywordStore: memory.NewKeywordStore(func(o *memory.KeywordStoreOptions) { o.TopK = mc.TopK }),
			dir:          mc.Dir,
			loader:       loader,
		}, nil
	}

	embed := opts.Embed
	if embed == nil {
		var err error
		if embed, err = memory.NewEmbeddingFunc(mc.EmbedderOptions()); err != nil {
			return nil, err
		}
	}
	if loader.CountTokens == nil {
		loader.CountTokens = memory.NewTokenCounter(embeddingModel(mc.Embedder)).Count
	}

	switch mc.Type {
	case config.MemoryChromem:
		ds, err := memory.NewDirectoryStore(mc.Dir, func(o *memory.DirectoryStoreOptions) {
			o.Collection = mc.Collection
			o.TopK = mc.TopK
			o.PersistDir = cfg.PersistDir()
			o.Compress = mc.Compress
			o.Embed = embed
			o.Loader = loader
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		return ds, nil
	case config.MemoryPinecone:
		ps, err := memory.NewPineconeStore(func(o *memory.PineconeStoreOptions) {
			o.APIKey = mc.Pinecone.APIKey
			o.Host = mc.Pinecone.Host
			o.IndexName = mc.Pinecone.IndexName
			o.IndexHost = mc.Pinecone.IndexHost
			o.Namespace = mc.Pinecone.Namespace
			o.TopK = mc.TopK
			if mc.Pinecone.ScoreThreshold != nil {
				o.ScoreThreshold = float32(*mc.Pinecone.ScoreThreshold)
			}
			o.Embed = embed
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		return &pineconeStore{PineconeStore: ps, dir: mc.Dir, loader: loader}, nil
	default:
		return nil, core.NewConfigurationError("memory.type", "unknown memory type %q", mc.Type)
	}
}

func embeddingModel(e config.EmbedderConfig) string {
	if e.Model != "" {
		return e.Model
	}
	return string(chromem.EmbeddingModelOpenAI3Small)
}

// keywordStore loads its directory into a memory.KeywordStore.
type keywordStore struct {
	*memory.KeywordStore
	dir    string
	loader memory.LoaderOptions
}

func (s *keywordStore) Index(ctx context.Context) (int, error) {
	docs, err := loadDirectory(ctx, s.dir, s.loader)
	if err != nil {
		return 0, err
	}
	s.Add(docs...)
	return len(docs), nil
}

// pineconeStore upserts its directory into the Pinecone index.
type pineconeStore struct {
	*memory.PineconeStore
	dir    string
	loader memory.LoaderOptions
}

func (s *pineconeStore) Index(ctx context.Context) (int, error) {
	if s.dir == "" {
		return 0, core.NewConfigurationError("memory.dir", "a document directory is required to index into Pinecone")
	}
	docs, err := loadDirectory(ctx, s.dir, s.loader)
	if err != nil {
		return 0, err
	}
	return s.PineconeStore.Index(ctx, docs)
}

func loadDirectory(ctx context.Context, dir string, loader memory.LoaderOptions) ([]memory.Document, error) {
	return memory.LoadDirectory(ctx, dir, func(o *memory.LoaderOptions) { *o = loader })
}

// Compile-time checks.
var (
	_ Store = (*memory.DirectoryStore)(nil)
	_ Store = (*keywordStore)(nil)
	_ Store = (*pineconeStore)(nil)
)
