package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"survey-assistant-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

type OpenAIProvider struct {
	client    *goopenai.Client
	modelName string
}

var (
	_ llm.LLMProvider = (*OpenAIProvider)(nil)
	_ llm.Streamer    = (*OpenAIProvider)(nil)
)

// NewOpenAIProvider builds a client for the OpenAI API. baseURL may point at any
// compatible endpoint; empty keeps the library default.
func NewOpenAIProvider(apiKey, baseURL, modelName string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: goopenai.NewClientWithConfig(cfg), modelName: modelName}, nil
}

func (p *OpenAIProvider) request(history []llm.Message, opts []llm.Option) goopenai.ChatCompletionRequest {
	options := llm.Apply(llm.Options{Temperature: 0.2, Model: p.modelName}, opts...)

	messages := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		role := msg.Role
		switch role {
		case llm.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case llm.RoleAssistant, "model":
			role = goopenai.ChatMessageRoleAssistant
		default:
			role = goopenai.ChatMessageRoleUser
		}
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	req := goopenai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
	}
	if options.MaxTokens > 0 {
		req.MaxCompletionTokens = options.MaxTokens
	}
	return req
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(history, opts))
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (p *OpenAIProvider) GenerateStream(ctx context.Context, prompt string, opts ...llm.Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := p.request([]llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts)
		req.Stream = true

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("openai stream failed: %w", err))
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("openai stream failed: %w", err))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}
