// Package pipeline sequences the per-question answer resolution: context
// split, optional retrieval, prompt construction, LLM invocation and
// answer extraction, then reassembles one result per input question.
package pipeline

import (
	"context"

	"mcq-agents/internal/dataset"
)

// Result is the graded outcome for one question.
type Result struct {
	QID     string
	Answer  string
	Method  string  // extraction cascade stage, "refusal", or "default"
	Seconds float64 // wall clock of the LLM call attempts incl. backoff
}

// Resolver answers a single question end to end. Implementations degrade
// internally wherever possible; a returned error means the caller must
// emit the default answer itself.
type Resolver interface {
	Resolve(ctx context.Context, q dataset.Question) (Result, error)
}

// DefaultResult is the deterministic fallback row for a question whose
// resolution failed outright: first label, zero latency.
func DefaultResult(q dataset.Question) Result {
	return Result{QID: q.QID, Answer: DefaultAnswer(q), Method: "default"}
}

// DefaultAnswer returns the first label of the question's alphabet, or
// "A" for a malformed record with no choices. A row is always emitted.
func DefaultAnswer(q dataset.Question) string {
	if len(q.Choices) > 0 {
		return q.Choices[0].Label
	}
	return "A"
}
