package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Supported provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderGroq       = "groq"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

var compatibleBaseURLs = map[string]string{
	ProviderGroq:       "https://api.groq.com/openai/v1",
	ProviderOllama:     "http://localhost:11434/v1",
	ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

// ProviderConfig selects and configures a Generator.
type ProviderConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// NewGenerator builds the generator for the configured provider.
func NewGenerator(cfg ProviderConfig) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderGemini:
		return NewGeminiGenerator(GeminiConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Logger:  cfg.Logger,
		})
	case ProviderOpenAI, ProviderGroq, ProviderOllama, ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = compatibleBaseURLs[provider]
		}
		return NewOpenAIGenerator(OpenAIConfig{
			Provider: provider,
			APIKey:   cfg.APIKey,
			BaseURL:  baseURL,
			Timeout:  cfg.Timeout,
			Logger:   cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
