// Package retrieval turns a free-text query into the most relevant stored
// chunks.
package retrieval

import (
	"context"
	"fmt"

	"faqrag/internal/domain"
)

// DefaultTopK is used when a caller passes k <= 0.
const DefaultTopK = 4

// Engine embeds a query and asks the bound vector store for the nearest
// chunks. Scores are stripped at this layer; callers that need them use the
// store directly.
type Engine struct {
	embedder   domain.Embedder
	store      domain.VectorStore
	collection string
	topK       int
}

func NewEngine(embedder domain.Embedder, store domain.VectorStore, collection string, topK int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{embedder: embedder, store: store, collection: collection, topK: topK}
}

// Retrieve returns the top-k chunks for the query, most similar first.
// k <= 0 falls back to the engine's configured default.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	if k <= 0 {
		k = e.topK
	}
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", domain.ErrEmbeddingUnavailable, len(vectors))
	}
	scored, err := e.store.Query(ctx, e.collection, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}
	chunks := make([]domain.Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = s.Chunk
	}
	return chunks, nil
}
