package embedding

import (
	"fmt"

	"mnemos/internal/config"
)

// NewEmdModel creates an embedding model for the configured provider.
func NewEmdModel(provider, model, apiKey, baseURL string) (Embedding, error) {
	switch provider {
	case "gemini":
		return NewGoogleModel(apiKey, model)
	case "openai":
		return NewOpenAIModel(apiKey, model)
	case "huggingface":
		return NewHuggingFaceModel(apiKey, model, baseURL)
	case "ollama":
		return NewOllamaModel(model, baseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// NewFromConfig builds the configured provider, optionally wrapped in an
// LRU cache for repeated query texts.
func NewFromConfig(cfg config.EmbeddingConfig) (Embedding, error) {
	var pc config.ProviderConfig
	switch cfg.Provider {
	case "gemini":
		pc = cfg.Gemini
	case "openai":
		pc = cfg.OpenAI
	case "ollama":
		pc = cfg.Ollama
	case "huggingface":
		pc = cfg.HuggingFace
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	model, err := NewEmdModel(cfg.Provider, pc.Model, pc.APIKey, pc.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCached(model, cfg.CacheSize)
	}
	return model, nil
}
