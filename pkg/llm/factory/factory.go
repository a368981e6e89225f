package factory

import (
	"context"
	"fmt"

	"survey-assistant-be/pkg/llm"
	"survey-assistant-be/pkg/llm/gemini"
	"survey-assistant-be/pkg/llm/ollama"
	"survey-assistant-be/pkg/llm/openai"
)

// Config selects and parameterizes one backend.
type Config struct {
	Provider          string
	Model             string
	OllamaBaseURL     string
	GeminiAPIKey      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	HuggingFaceAPIKey string
}

// huggingFaceRouterURL is the OpenAI-compatible endpoint of the Hugging Face inference router.
const huggingFaceRouterURL = "https://router.huggingface.co/v1"

func NewLLMProvider(ctx context.Context, cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "gemini", "":
		return gemini.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.Model)
	case "openai":
		return openai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model)
	case "huggingface":
		return openai.NewOpenAIProvider(cfg.HuggingFaceAPIKey, huggingFaceRouterURL, cfg.Model)
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3"
		}
		return ollama.NewOllamaProvider(baseURL, model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
