package llm

import (
	"context"
	"fmt"

	"mnemos/internal/config"
	"mnemos/internal/models"
)

// LLM is implemented by every text generation provider.
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)
}

// NewClient creates an LLM client for the configured provider.
func NewClient(cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(context.Background(), cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "openai":
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	case "ollama":
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
