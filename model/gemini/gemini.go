// Package gemini provides a model.Model backed by the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/ragflow/core"
	"github.com/hupe1980/ragflow/model"
)

// Options configures the Gemini adapter.
type Options struct {
	Model           string
	APIKey          string
	Temperature     float32
	MaxOutputTokens int32
}

// Model wraps genai.Client behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model. The API key falls back to GOOGLE_API_KEY
// or GEMINI_API_KEY; construction fails when neither is available.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents, system := buildContents(req)
		temperature := m.opts.Temperature
		config := &genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: m.opts.MaxOutputTokens,
		}
		if system != "" {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
		}

		if req.Stream {
			var text strings.Builder
			for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
				if err != nil {
					errCh <- fmt.Errorf("gemini streaming error: %w", err)
					return
				}
				if delta := chunk.Text(); delta != "" {
					text.WriteString(delta)
					out <- model.Response{Partial: true, Text: delta}
				}
			}
			out <- model.Response{Text: text.String(), FinishReason: "stop"}
			return
		}

		result, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}
		if result == nil {
			errCh <- fmt.Errorf("empty response from gemini api")
			return
		}

		resp := model.Response{Text: result.Text(), FinishReason: finishReason(result)}
		if u := result.UsageMetadata; u != nil {
			resp.Usage = &model.TokenUsage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}
		out <- resp
	}()

	return out, errCh
}

// buildContents converts messages into Gemini contents and returns the
// combined system instruction separately.
func buildContents(req model.Request) ([]*genai.Content, string) {
	system := []string{}
	if req.Instructions != "" {
		system = append(system, req.Instructions)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleSystem:
			system = append(system, msg.Text)
		case core.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleUser))
		}
	}

	return contents, strings.Join(system, "\n\n")
}

func finishReason(result *genai.GenerateContentResponse) string {
	if len(result.Candidates) == 0 || result.Candidates[0].FinishReason == "" {
		return "stop"
	}
	return strings.ToLower(string(result.Candidates[0].FinishReason))
}

// Info returns metadata describing this Gemini model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini"}
}
