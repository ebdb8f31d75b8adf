package store

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mcq-agents/internal/embeddings"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SavePassages(ctx context.Context, passages []Passage) ([]Passage, error) {
	args := m.Called(ctx, passages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Passage), args.Error(1)
}

func (m *MockStore) SaveEmbedding(ctx context.Context, emb Embedding) error {
	args := m.Called(ctx, emb)
	return args.Error(0)
}

func (m *MockStore) CountPassages(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) TopK(ctx context.Context, vector embeddings.Vector, k int) ([]SearchResult, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SearchResult), args.Error(1)
}
