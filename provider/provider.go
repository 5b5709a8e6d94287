package provider

import (
	"context"
	"fmt"

	"github.com/insightflow/insightflow/config"
	gemini_provider "github.com/insightflow/insightflow/provider/gemini"
	openai_provider "github.com/insightflow/insightflow/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Gemini Client = "gemini"
)

// Provider is the interface the pipeline and chat engine consume for
// summarization, answer completion and embedding computation.
type Provider interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an LLM client from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch Client(cfg.Provider) {
	case OpenAI:
		return openai_provider.NewClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.EmbeddingDimensions,
			cfg.Temperature,
			cfg.Timeout,
		), nil
	case Gemini:
		return gemini_provider.NewClient(
			cfg.APIKey,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.EmbeddingDimensions,
			cfg.Temperature,
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
