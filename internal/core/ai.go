package core

import "context"

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider generates text. model selects a specific generative model;
// an empty model uses the provider default.
type LLMProvider interface {
	Generate(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}
