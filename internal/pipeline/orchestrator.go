package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"mcq-agents/internal/dataset"
)

// Stats summarizes one orchestrator run.
type Stats struct {
	Answered  int // results carrying an extracted or refusal answer
	Defaulted int // results that fell back to the default label
	Reused    int // results taken from prior checkpointed answers
}

// Orchestrator fans questions out to a Resolver with bounded
// concurrency and reassembles results in input order.
type Orchestrator struct {
	log      *slog.Logger
	resolver Resolver
	workers  int

	// OnResult, when set, receives each result as it lands. It is
	// called from worker goroutines and must be safe for concurrent
	// use. Used for incremental checkpointing.
	OnResult func(Result)
}

func NewOrchestrator(log *slog.Logger, resolver Resolver, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{log: log, resolver: resolver, workers: workers}
}

// Run answers every question and returns exactly one result per input,
// in input order. prior maps qid to an already-resolved result (from a
// checkpoint); those questions are not re-asked. Resolver errors degrade
// to the default answer. Context cancellation stops scheduling new
// questions; already-running ones finish, and any question never reached
// still receives its default row.
func (o *Orchestrator) Run(ctx context.Context, questions []dataset.Question, prior map[string]Result) ([]Result, Stats, error) {
	results := make([]Result, len(questions))
	done := make([]bool, len(questions))
	var stats Stats

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i, q := range questions {
		if res, ok := prior[q.QID]; ok {
			results[i] = res
			done[i] = true
			stats.Reused++
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := o.resolver.Resolve(gctx, q)
			if err != nil {
				o.log.Error("resolver failed, emitting default answer", "qid", q.QID, "err", err)
				res = DefaultResult(q)
			}
			results[i] = res
			done[i] = true
			if o.OnResult != nil {
				o.OnResult(res)
			}
			return nil
		})
	}

	// Resolvers degrade internally, so the only error surfacing here
	// is context cancellation propagated through gctx.
	runErr := g.Wait()

	for i := range results {
		if !done[i] {
			results[i] = DefaultResult(questions[i])
		}
	}
	for i, res := range results {
		if _, reused := prior[questions[i].QID]; reused {
			continue
		}
		if res.Method == "default" {
			stats.Defaulted++
		} else {
			stats.Answered++
		}
	}

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	return results, stats, runErr
}
