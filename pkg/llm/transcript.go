package llm

import (
	"context"
	"iter"
	"strings"
	"time"

	"survey-assistant-be/internal/pkg/logger"
)

// TranscriptProvider records every prompt and response to a dedicated log before handing
// the result back to the caller.
type TranscriptProvider struct {
	inner LLMProvider
	log   logger.ILogger
}

var (
	_ LLMProvider = (*TranscriptProvider)(nil)
	_ Streamer    = (*TranscriptProvider)(nil)
)

func NewTranscriptProvider(inner LLMProvider, log logger.ILogger) *TranscriptProvider {
	return &TranscriptProvider{inner: inner, log: log}
}

func (t *TranscriptProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	var prompt strings.Builder
	for _, m := range history {
		prompt.WriteString("[" + m.Role + "] " + m.Content + "\n")
	}
	start := time.Now()
	out, err := t.inner.Chat(ctx, history, options...)
	t.record("chat", prompt.String(), out, start, err)
	return out, err
}

func (t *TranscriptProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	start := time.Now()
	out, err := t.inner.Generate(ctx, prompt, options...)
	t.record("generate", prompt, out, start, err)
	return out, err
}

// GenerateStream passes chunks through as they arrive and records the joined text once
// the stream ends. Providers without streaming yield their whole response as one chunk.
func (t *TranscriptProvider) GenerateStream(ctx context.Context, prompt string, options ...Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		s, ok := t.inner.(Streamer)
		if !ok {
			out, err := t.inner.Generate(ctx, prompt, options...)
			t.record("generate", prompt, out, start, err)
			yield(out, err)
			return
		}

		var sb strings.Builder
		for chunk, err := range s.GenerateStream(ctx, prompt, options...) {
			if err != nil {
				t.record("stream", prompt, sb.String(), start, err)
				yield("", err)
				return
			}
			sb.WriteString(chunk)
			if !yield(chunk, nil) {
				t.record("stream", prompt, sb.String(), start, nil)
				return
			}
		}
		t.record("stream", prompt, sb.String(), start, nil)
	}
}

func (t *TranscriptProvider) record(mode, prompt, response string, start time.Time, err error) {
	details := map[string]interface{}{
		"mode":        mode,
		"prompt":      prompt,
		"response":    response,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		details["error"] = err.Error()
		t.log.Error("LLM", "model call failed", details)
		return
	}
	t.log.Info("LLM", "model call", details)
}
