// Package retriever selects grounding passages for a question from a
// pre-built embedding space. The zero-retrieval deployment uses Noop.
package retriever

import (
	"context"
	"fmt"

	"mcq-agents/internal/embeddings"
	"mcq-agents/internal/store"
)

// Passage is one retrieved grounding text with its similarity score.
type Passage struct {
	Title string
	Text  string
	Score float32
}

// Retriever returns the top-k passages for a query, descending by score.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

// Noop is the null retriever: retrieval disabled, always empty.
type Noop struct{}

func (Noop) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	return nil, nil
}

// StoreRetriever embeds the query and searches the knowledge-base store.
type StoreRetriever struct {
	store    store.Store
	embedder embeddings.Embedder
}

// NewStoreRetriever wires a store-backed retriever.
func NewStoreRetriever(st store.Store, emb embeddings.Embedder) *StoreRetriever {
	return &StoreRetriever{store: st, embedder: emb}
}

func (r *StoreRetriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := r.store.TopK(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("knowledge base search failed: %w", err)
	}
	passages := make([]Passage, len(results))
	for i, res := range results {
		passages[i] = Passage{
			Title: res.Passage.Title,
			Text:  res.Passage.Text,
			Score: res.Score,
		}
	}
	return passages, nil
}
