package gemini

import (
	"context"
	"fmt"
	"iter"

	"survey-assistant-be/pkg/llm"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

var (
	_ llm.LLMProvider = (*GeminiProvider)(nil)
	_ llm.Streamer    = (*GeminiProvider)(nil)
)

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, modelName: modelName}, nil
}

// split maps the provider-agnostic history onto gemini contents. System messages become
// the system instruction; assistant turns use the model role.
func split(history []llm.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			system = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case llm.RoleAssistant, "model":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return system, contents
}

func (g *GeminiProvider) config(opts []llm.Option) (string, *genai.GenerateContentConfig) {
	options := llm.Apply(llm.Options{Temperature: 0.2, Model: g.modelName}, opts...)
	return options.Model, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](float32(options.Temperature)),
	}
}

func (g *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	model, cfg := g.config(opts)
	system, contents := split(history)
	cfg.SystemInstruction = system

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return resp.Text(), nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (g *GeminiProvider) GenerateStream(ctx context.Context, prompt string, opts ...llm.Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		model, cfg := g.config(opts)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, genai.Text(prompt), cfg) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream failed: %w", err))
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}
