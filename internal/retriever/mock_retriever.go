package retriever

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRetriever is a mock implementation of Retriever using testify/mock.
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Passage), args.Error(1)
}
