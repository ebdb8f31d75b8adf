// Package queue fans single questions out to answering workers over a
// request/reply transport, letting a batch run scale horizontally.
package queue

import (
	"context"

	"github.com/google/uuid"
)

// AnswerRequest carries one question to a worker.
type AnswerRequest struct {
	ID       uuid.UUID `json:"id"`
	QID      string    `json:"qid"`
	Question string    `json:"question"`
	Choices  []string  `json:"choices"`
}

// AnswerResponse carries the worker's verdict back.
type AnswerResponse struct {
	QID     string  `json:"qid"`
	Answer  string  `json:"answer"`
	Method  string  `json:"method"`
	Seconds float64 `json:"seconds"`
	Err     string  `json:"err,omitempty"`
}

// Handler answers one request on the worker side.
type Handler func(context.Context, AnswerRequest) (AnswerResponse, error)

// Queue exposes both sides of the answering service.
type Queue interface {
	// Ask sends a question and waits for the worker's answer, bounded by
	// ctx.
	Ask(ctx context.Context, req AnswerRequest) (AnswerResponse, error)

	// Serve consumes questions with handler until ctx is cancelled.
	Serve(ctx context.Context, handler Handler) error
}
