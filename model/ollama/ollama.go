// Package ollama provides a model.Model backed by a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/model"
)

// DefaultHost is the address of a locally running Ollama server.
const DefaultHost = "http://localhost:11434"

// Options configures the Ollama adapter.
type Options struct {
	Model       string
	Host        string
	Temperature float64
	NumPredict  int
	HTTPClient  *http.Client
}

// Model wraps the Ollama chat API behind the generic model.Model interface.
type Model struct {
	client *api.Client
	opts   Options
}

// NewModel creates an Ollama model. An unparsable host is reported as an error.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "llama3.1",
		Host:        DefaultHost,
		Temperature: 0.7,
		NumPredict:  4096,
		HTTPClient:  http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	base, err := url.Parse(opts.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", opts.Host, err)
	}

	return &Model{client: api.NewClient(base, opts.HTTPClient), opts: opts}, nil
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := req.Stream
		chatReq := &api.ChatRequest{
			Model:    m.opts.Model,
			Messages: buildMessages(req),
			Stream:   &stream,
			Options: map[string]any{
				"temperature": m.opts.Temperature,
				"num_predict": m.opts.NumPredict,
			},
		}

		var (
			text  strings.Builder
			final api.ChatResponse
		)
		err := m.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				text.WriteString(resp.Message.Content)
				if stream {
					out <- model.Response{Partial: true, Text: resp.Message.Content}
				}
			}
			if resp.Done {
				final = resp
			}
			return nil
		})
		if err != nil {
			errCh <- fmt.Errorf("ollama api error: %w", err)
			return
		}

		finishReason := final.DoneReason
		if finishReason == "" {
			finishReason = "stop"
		}

		out <- model.Response{
			Text:         text.String(),
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     final.PromptEvalCount,
				CompletionTokens: final.EvalCount,
				TotalTokens:      final.PromptEvalCount + final.EvalCount,
			},
		}
	}()

	return out, errCh
}

func buildMessages(req model.Request) []api.Message {
	messages := make([]api.Message, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, api.Message{Role: string(core.RoleSystem), Content: req.Instructions})
	}
	for _, msg := range req.Messages {
		messages = append(messages, api.Message{Role: string(msg.Role), Content: msg.Text})
	}
	return messages
}

// Info returns metadata describing this Ollama model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "ollama"}
}
