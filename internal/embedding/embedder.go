// Package embedding provides the embedding capability interface and its
// providers: a remote OpenAI-compatible API, a local ONNX model, and a
// deterministic mock. The provider is selected once at startup.
package embedding

import "context"

// Embedder produces fixed-length vector embeddings for text. Implementations
// must return unit-normalized vectors so cosine distance is well defined
// downstream.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts in order. Providers that support multi-input
	// requests batch upstream calls to bound total request count.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
