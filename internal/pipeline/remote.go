package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mcq-agents/internal/dataset"
	"mcq-agents/internal/queue"
)

// defaultAskTimeout bounds one remote question. Generous because the
// worker may sit through LLM retries before replying.
const defaultAskTimeout = 30 * time.Minute

// Remote resolves questions by shipping them to answering workers over
// the queue. Worker-side failures come back in-band and surface as
// errors so the orchestrator emits the default row.
type Remote struct {
	log     *slog.Logger
	q       queue.Queue
	timeout time.Duration
}

func NewRemote(log *slog.Logger, q queue.Queue) *Remote {
	return &Remote{log: log, q: q, timeout: defaultAskTimeout}
}

func (r *Remote) Resolve(ctx context.Context, q dataset.Question) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	choices := make([]string, len(q.Choices))
	for i, c := range q.Choices {
		choices[i] = c.Text
	}
	req := queue.AnswerRequest{
		ID:       uuid.New(),
		QID:      q.QID,
		Question: q.RawText,
		Choices:  choices,
	}

	resp, err := r.q.Ask(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if resp.Err != "" {
		return Result{}, errors.New(resp.Err)
	}
	return Result{
		QID:     resp.QID,
		Answer:  resp.Answer,
		Method:  resp.Method,
		Seconds: resp.Seconds,
	}, nil
}

// WorkerHandler adapts a local resolver into the queue's handler shape
// for the worker side.
func WorkerHandler(resolver Resolver) queue.Handler {
	return func(ctx context.Context, req queue.AnswerRequest) (queue.AnswerResponse, error) {
		q := dataset.Question{
			QID:     req.QID,
			RawText: req.Question,
			Choices: dataset.MakeChoices(req.Choices),
		}

		res, err := resolver.Resolve(ctx, q)
		if err != nil {
			return queue.AnswerResponse{QID: req.QID, Err: err.Error()}, nil
		}
		return queue.AnswerResponse{
			QID:     res.QID,
			Answer:  res.Answer,
			Method:  res.Method,
			Seconds: res.Seconds,
		}, nil
	}
}
