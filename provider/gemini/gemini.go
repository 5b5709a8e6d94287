package gemini_provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// client implements the provider interface on top of the Gemini API.
type client struct {
	genai           *genai.Client
	completionModel string
	embeddingModel  string
	dimensions      int
	temperature     float64
}

// NewClient creates a Gemini-backed provider.
func NewClient(apiKey, completionModel, embeddingModel string, dimensions int, temperature float64) (*client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if completionModel == "" {
		completionModel = "gemini-2.5-flash"
	}
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}
	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &client{
		genai:           gc,
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		dimensions:      dimensions,
		temperature:     temperature,
	}, nil
}

// Complete runs a single-turn generation and returns the response text.
func (c *client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.temperature)),
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	resp, err := c.genai.Models.GenerateContent(ctx, c.completionModel, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty completion")
	}
	return text, nil
}

// CreateEmbedding generates embeddings for the given texts. Gemini has
// native batch support.
func (c *client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	if c.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(c.dimensions))
	}
	result, err := c.genai.Models.EmbedContent(ctx, c.embeddingModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vecs[i] = emb.Values
	}
	return vecs, nil
}
