// Package llm provides OpenAI-compatible embedding client functionality.
package llm

import (
	"context"
)

// EmbeddingClient defines the interface for embedding operations.
// Use this interface for dependency injection to enable mocking in tests.
type EmbeddingClient interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Ensure implementations satisfy EmbeddingClient at compile time.
var (
	_ EmbeddingClient = (*Client)(nil)
	_ EmbeddingClient = (*CachingClient)(nil)
	_ EmbeddingClient = (*MockEmbeddingClient)(nil)
)
