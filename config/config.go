package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/flow"
	"github.com/hupe1980/ragflow/internal/util"
	"github.com/hupe1980/ragflow/logging"
	"github.com/hupe1980/ragflow/memory"
	"github.com/hupe1980/ragflow/runner"
)

//go:embed default.yaml
var defaultYAML []byte

// Model providers understood by the backend section.
const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Memory types understood by the memory section.
const (
	MemoryChromem  = "chromem"
	MemoryPinecone = "pinecone"
	MemoryKeyword  = "keyword"
	MemoryNone     = "none"
)

// Config is the root of a ragflow configuration file.
type Config struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Backends maps a backend name to the model it configures.
	Backends map[string]*BackendConfig `yaml:"backends"`
	Agents   []*AgentConfig            `yaml:"agents"`

	// Flow is the arrow separated order of agent names.
	Flow      string        `yaml:"flow"`
	Loops     int           `yaml:"loops,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	Handoff   string        `yaml:"handoff,omitempty"`
	Retrieval string        `yaml:"retrieval,omitempty"`

	Memory MemoryConfig `yaml:"memory"`
	Log    LogConfig    `yaml:"log"`

	// WorkspaceDir holds persisted indexes.
	WorkspaceDir string `yaml:"workspace_dir,omitempty"`
}

// BackendConfig configures one model backend.
type BackendConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model,omitempty"`
	APIKey      string   `yaml:"api_key,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	// Responses are canned replies for the mock provider, keyed by prompt.
	Responses map[string]string `yaml:"responses,omitempty"`
}

// AgentConfig configures one agent.
type AgentConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Backend     string `yaml:"backend"`
	// Instruction is the role text. It may reference {{.Task}}, {{.Agent}},
	// {{.Step}}, {{.Total}}, {{.Loop}} and {{.RunID}}; other keys are rejected.
	Instruction string `yaml:"instruction"`
	MaxTurns    int    `yaml:"max_turns,omitempty"`
	Stream      bool   `yaml:"stream,omitempty"`
}

// MemoryConfig configures the document store agents retrieve from.
type MemoryConfig struct {
	Type         string   `yaml:"type"`
	Dir          string   `yaml:"dir,omitempty"`
	Recursive    bool     `yaml:"recursive,omitempty"`
	FilenameAsID bool     `yaml:"filename_as_id,omitempty"`
	TopK         int      `yaml:"top_k,omitempty"`
	Extensions   []string `yaml:"extensions,omitempty"`
	// MaxTokens skips documents larger than the embedding model accepts.
	MaxTokens  int    `yaml:"max_tokens,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	// Persist keeps the chromem index below the workspace directory.
	Persist  bool           `yaml:"persist,omitempty"`
	Compress bool           `yaml:"compress,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Pinecone PineconeConfig `yaml:"pinecone"`
}

// EmbedderConfig configures the embedding backend of vector stores.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// PineconeConfig configures the Pinecone store.
type PineconeConfig struct {
	APIKey         string   `yaml:"api_key,omitempty"`
	Host           string   `yaml:"host,omitempty"`
	IndexName      string   `yaml:"index_name,omitempty"`
	IndexHost      string   `yaml:"index_host,omitempty"`
	Namespace      string   `yaml:"namespace,omitempty"`
	ScoreThreshold *float64 `yaml:"score_threshold,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`
	Format    string `yaml:"format,omitempty"`
	AddSource bool   `yaml:"add_source,omitempty"`
}

// Default returns the embedded medical team configuration, expanded against
// the current environment and with defaults applied. It is not validated.
func Default() (*Config, error) {
	return Parse(defaultYAML)
}

// DefaultYAML returns the raw embedded default configuration.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}

// Load reads the env files and the YAML file at path, or the embedded default
// when path is empty, and validates the result.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	data := defaultYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		data = b
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data, expands environment references and applies
// defaults. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, core.NewConfigurationError("yaml", "config is empty")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, core.NewConfigurationError("yaml", "invalid YAML: %v", err)
	}
	expandNode(&root)

	expanded, err := yaml.Marshal(&root)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, core.NewConfigurationError("yaml", "invalid config: %v", err)
	}

	cfg.SetDefaults()
	return cfg, nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "ragflow"
	}
	if c.Loops == 0 {
		c.Loops = 1
	}
	if c.WorkspaceDir == "" {
		c.WorkspaceDir = ".ragflow"
	}
	if c.Backends == nil {
		c.Backends = map[string]*BackendConfig{}
	}

	for _, b := range c.Backends {
		if b == nil {
			continue
		}
		b.Provider = strings.ToLower(strings.TrimSpace(b.Provider))
		if b.APIKey == "" {
			b.APIKey = ProviderAPIKey(b.Provider)
		}
		if b.Model == "" {
			b.Model = defaultModel(b.Provider)
		}
	}

	for _, a := range c.Agents {
		if a != nil && a.MaxTurns == 0 {
			a.MaxTurns = 1
		}
	}

	c.Memory.SetDefaults()

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// SetDefaults fills unset memory fields.
func (m *MemoryConfig) SetDefaults() {
	m.Type = strings.ToLower(strings.TrimSpace(m.Type))
	if m.Type == "" {
		m.Type = MemoryNone
	}
	if m.TopK == 0 {
		m.TopK = 10
	}
	if len(m.Extensions) == 0 {
		m.Extensions = append([]string(nil), memory.DefaultExtensions...)
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = memory.DefaultEmbeddingTokenLimit
	}
	if m.Collection == "" {
		m.Collection = "documents"
	}
	if m.Embedder.Provider == "" {
		m.Embedder.Provider = memory.EmbedderOpenAI
	}
	if m.Embedder.APIKey == "" && m.Embedder.Provider == memory.EmbedderOpenAI {
		m.Embedder.APIKey = ProviderAPIKey(ProviderOpenAI)
	}
	if m.Type == MemoryPinecone && m.Pinecone.APIKey == "" {
		m.Pinecone.APIKey = ProviderAPIKey("pinecone")
	}
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGroq:
		return "llama-3.1-70b-versatile"
	case ProviderAnthropic:
		return "claude-3-5-sonnet-20241022"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOllama:
		return "llama3.1"
	case ProviderMock:
		return "mock"
	default:
		return ""
	}
}

// Validate checks the whole configuration before any run and reports every
// violation. All returned errors match core.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Agents) == 0 {
		errs = append(errs, core.NewConfigurationError("agents", "at least one agent is required"))
	}

	for name, b := range c.Backends {
		if err := b.validate(name); err != nil {
			errs = append(errs, err)
		}
	}

	names := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a == nil {
			errs = append(errs, core.NewConfigurationError(fmt.Sprintf("agents[%d]", i), "agent must not be empty"))
			continue
		}
		field := fmt.Sprintf("agents[%d]", i)
		if a.Name == "" {
			errs = append(errs, core.NewConfigurationError(field+".name", "name is required"))
		} else if names[a.Name] {
			errs = append(errs, core.NewConfigurationError(field+".name", "duplicate agent name %q", a.Name))
		}
		names[a.Name] = true
		if _, ok := c.Backends[a.Backend]; !ok {
			errs = append(errs, core.NewConfigurationError(field+".backend", "unknown backend %q", a.Backend))
		}
		if a.MaxTurns < 1 {
			errs = append(errs, core.NewConfigurationError(field+".max_turns", "max_turns must be at least 1"))
		}
		if _, err := util.RenderRole(a.Instruction, core.RunInfo{}.Vars()); err != nil {
			errs = append(errs, core.NewConfigurationError(field+".instruction", "invalid role template: %v", err))
		}
	}

	if f, err := flow.Parse(c.Flow); err != nil {
		errs = append(errs, err)
	} else {
		for _, id := range f {
			if !names[string(id)] {
				errs = append(errs, core.NewConfigurationError("flow", "unknown agent %q", id))
			}
		}
	}

	if c.Loops < 1 {
		errs = append(errs, core.NewConfigurationError("loops", "loops must be at least 1"))
	}
	if c.Timeout < 0 {
		errs = append(errs, core.NewConfigurationError("timeout", "timeout must not be negative"))
	}
	if _, err := runner.ParseHandoffPolicy(c.Handoff); err != nil {
		errs = append(errs, err)
	}
	if _, err := runner.ParseRetrievalPolicy(c.Retrieval); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, core.NewConfigurationError("log.level", "%v", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, core.NewConfigurationError("log.format", "unknown format %q", c.Log.Format))
	}

	errs = append(errs, c.Memory.validate()...)

	return errors.Join(errs...)
}

func (b *BackendConfig) validate(name string) error {
	field := "backends." + name
	if b == nil {
		return core.NewConfigurationError(field, "backend must not be empty")
	}
	switch b.Provider {
	case ProviderOpenAI, ProviderGroq, ProviderAnthropic, ProviderGemini:
		if b.APIKey == "" {
			return core.NewConfigurationError(field+".api_key", "provider %q requires an API key", b.Provider)
		}
	case ProviderOllama, ProviderMock:
	case "":
		return core.NewConfigurationError(field+".provider", "provider is required")
	default:
		return core.NewConfigurationError(field+".provider", "unknown provider %q", b.Provider)
	}
	if b.Temperature != nil && (*b.Temperature < 0 || *b.Temperature > 2) {
		return core.NewConfigurationError(field+".temperature", "temperature must be within [0, 2]")
	}
	return nil
}

func (m *MemoryConfig) validate() []error {
	var errs []error

	if m.TopK < 1 {
		errs = append(errs, core.NewConfigurationError("memory.top_k", "top_k must be positive"))
	}

	switch m.Type {
	case MemoryNone:
		return errs
	case MemoryChromem, MemoryKeyword:
		if m.Dir == "" {
			errs = append(errs, core.NewConfigurationError("memory.dir", "%s memory requires a directory", m.Type))
		}
	case MemoryPinecone:
		if m.Pinecone.APIKey == "" {
			errs = append(errs, core.NewConfigurationError("memory.pinecone.api_key", "pinecone requires an API key"))
		}
		if m.Pinecone.IndexName == "" && m.Pinecone.IndexHost == "" {
			errs = append(errs, core.NewConfigurationError("memory.pinecone.index_name", "pinecone requires index_name or index_host"))
		}
	default:
		return append(errs, core.NewConfigurationError("memory.type", "unknown memory type %q", m.Type))
	}

	if m.Type != MemoryKeyword {
		if _, err := memory.NewEmbeddingFunc(m.EmbedderOptions()); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// EmbedderOptions converts the embedder section.
func (m *MemoryConfig) EmbedderOptions() memory.EmbedderOptions {
	return memory.EmbedderOptions{
		Provider: m.Embedder.Provider,
		Model:    m.Embedder.Model,
		APIKey:   m.Embedder.APIKey,
		BaseURL:  m.Embedder.BaseURL,
	}
}

// PersistDir returns where the chromem index is kept, or "" when the index
// lives in memory only.
func (c *Config) PersistDir() string {
	if !c.Memory.Persist {
		return ""
	}
	return filepath.Join(c.WorkspaceDir, "index")
}

// AgentNames returns the configured agent names in declaration order.
func (c *Config) AgentNames() []string {
	out := make([]string, 0, len(c.Agents))
	for _, a := range c.Agents {
		if a != nil {
			out = append(out, a.Name)
		}
	}
	return out
}

// Logger builds the configured logger.
func (c *Config) Logger() logging.Logger {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.NewSlogLogger(level, c.Log.Format, c.Log.AddSource)
}
