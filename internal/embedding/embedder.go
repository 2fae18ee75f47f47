// Package embedding defines the text embedding contract and a deterministic
// hash-based embedder used for local development and tests.
package embedding

import (
	"context"
)

// Embedder defines the interface for text embedding providers.
// Implementations include the hash embedder here and the langchaingo-backed
// embedder in internal/llm.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// Must equal mapping Embed over texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	Dimension() int
}

// DefaultDimension is the hash embedder dimension when none is configured.
const DefaultDimension = 16
