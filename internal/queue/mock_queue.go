package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of Queue using testify/mock.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Ask(ctx context.Context, req AnswerRequest) (AnswerResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(AnswerResponse), args.Error(1)
}

func (m *MockQueue) Serve(ctx context.Context, handler Handler) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}
