package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	answerSubject = "questions.answer"
	workerGroup   = "answer-workers"
)

// NewNATS constructs a thin NATS-based answering queue.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc}
}

type natsQueue struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (q *natsQueue) Ask(ctx context.Context, req AnswerRequest) (AnswerResponse, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return AnswerResponse{}, err
	}
	msg, err := q.nc.RequestWithContext(ctx, answerSubject, body)
	if err != nil {
		return AnswerResponse{}, fmt.Errorf("answer request failed: %w", err)
	}
	var resp AnswerResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return AnswerResponse{}, fmt.Errorf("failed to decode answer response: %w", err)
	}
	return resp, nil
}

func (q *natsQueue) Serve(ctx context.Context, handler Handler) error {
	sub, err := q.nc.QueueSubscribe(answerSubject, workerGroup, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (q *natsQueue) handleMessage(ctx context.Context, msg *nats.Msg, handler Handler) {
	var req AnswerRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		q.log.Error("failed to decode answer request", "err", err)
		return
	}

	resp, err := handler(ctx, req)
	if err != nil {
		// The requester still needs a reply; ship the error in-band.
		resp = AnswerResponse{QID: req.QID, Err: err.Error()}
	}
	body, err := json.Marshal(resp)
	if err != nil {
		q.log.Error("failed to encode answer response", "id", req.ID, "err", err)
		return
	}
	if err := msg.Respond(body); err != nil {
		q.log.Error("failed to respond to answer request", "id", req.ID, "err", err)
	}
}
