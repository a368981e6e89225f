package llm

import (
	"context"
	"iter"
	"strings"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// Apply folds opts over a copy of defaults.
func Apply(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// Streamer is implemented by providers that can yield a response incrementally.
type Streamer interface {
	GenerateStream(ctx context.Context, prompt string, options ...Option) iter.Seq2[string, error]
}

// Collect drains a stream into the full response text.
func Collect(stream iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for chunk, err := range stream {
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

// GenerateText uses the streaming variant when the provider offers one and stream is set,
// and plain Generate otherwise. Both produce the same eventual text.
func GenerateText(ctx context.Context, p LLMProvider, stream bool, prompt string, opts ...Option) (string, error) {
	if s, ok := p.(Streamer); ok && stream {
		return Collect(s.GenerateStream(ctx, prompt, opts...))
	}
	return p.Generate(ctx, prompt, opts...)
}
