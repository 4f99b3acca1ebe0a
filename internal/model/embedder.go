package model

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// Embedder generates query embeddings with a Gemini embedding model. The
// output dimensionality must match the pgvector column the documents index
// was built with.
type Embedder struct {
	client *genai.Client
	model  string
	dim    int32
	logger *slog.Logger
}

// NewEmbedder creates an Embedder for the given embedding model and output
// dimensionality.
func NewEmbedder(client *genai.Client, embeddingModel string, dim int32, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{client: client, model: embeddingModel, dim: dim, logger: logger}
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(e.dim)})
	if err != nil {
		return nil, fmt.Errorf("embedding content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embedding model %q returned no values", e.model)
	}
	return resp.Embeddings[0].Values, nil
}
