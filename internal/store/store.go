package store

import (
	"context"

	"github.com/google/uuid"

	"mcq-agents/internal/embeddings"
)

// Passage is one knowledge-base entry.
type Passage struct {
	ID     uuid.UUID
	Ord    int // insertion order, the deterministic tie-break for search
	Title  string
	Source string
	Tags   []string
	Text   string
}

// Embedding pairs a passage with its vector.
type Embedding struct {
	PassageID uuid.UUID
	Vector    embeddings.Vector
	Model     string
}

// SearchResult is one similarity hit.
type SearchResult struct {
	Passage Passage
	Score   float32
}

// Store defines the knowledge-base persistence contract.
type Store interface {
	SavePassages(ctx context.Context, passages []Passage) ([]Passage, error)
	SaveEmbedding(ctx context.Context, emb Embedding) error
	CountPassages(ctx context.Context) (int, error)
	TopK(ctx context.Context, vector embeddings.Vector, k int) ([]SearchResult, error)
}
