package llm

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "bare object", text: `{"action":"save"}`, want: `{"action":"save"}`},
		{name: "fenced json", text: "Sure!\n```json\n{\"action\":\"exit\"}\n```\nBye", want: `{"action":"exit"}`},
		{name: "fence without language", text: "```\n[1,2]\n```", want: `[1,2]`},
		{name: "prose around object", text: `Here you go: {"a":{"b":[1]}} hope it helps`, want: `{"a":{"b":[1]}}`},
		{name: "stray brace before value", text: `use {curly} like {"ok":true}`, want: `{"ok":true}`},
		{name: "array first", text: `[{"type":"block"}] trailing`, want: `[{"type":"block"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ExtractJSON(tt.text)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestExtractJSONNone(t *testing.T) {
	_, err := ExtractJSON("I cannot help with that.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ExtractJSON(`{"unterminated": `)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestFirstJSONObjectAndArray(t *testing.T) {
	text := `chunks: [{"type":"question","content":"Q1"}]`

	arr, err := FirstJSONArray(text)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"question","content":"Q1"}]`, string(arr))

	obj, err := FirstJSONObject(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"question","content":"Q1"}`, string(obj))

	_, err = FirstJSONArray(`{"only":"object"}`)
	assert.ErrorIs(t, err, ErrNoJSON)
}

type streamingStub struct {
	chunks []string
	fail   error
	plain  int
}

func (s *streamingStub) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	s.plain++
	return "plain", nil
}

func (s *streamingStub) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return s.Chat(ctx, nil, options...)
}

func (s *streamingStub) GenerateStream(ctx context.Context, prompt string, options ...Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range s.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if s.fail != nil {
			yield("", s.fail)
		}
	}
}

func TestGenerateText(t *testing.T) {
	stub := &streamingStub{chunks: []string{"[1,", "2]"}}

	text, err := GenerateText(context.Background(), stub, true, "p")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", text)
	assert.Equal(t, 0, stub.plain)

	text, err = GenerateText(context.Background(), stub, false, "p")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
	assert.Equal(t, 1, stub.plain)

	failing := &streamingStub{chunks: []string{"par"}, fail: errors.New("stream cut")}
	_, err = GenerateText(context.Background(), failing, true, "p")
	assert.EqualError(t, err, "stream cut")
}

func TestApplyOptions(t *testing.T) {
	o := Apply(Options{Temperature: 0.7, Model: "base"}, WithTemperature(0.1), WithMaxTokens(64))
	assert.Equal(t, 0.1, o.Temperature)
	assert.Equal(t, 64, o.MaxTokens)
	assert.Equal(t, "base", o.Model)
}
