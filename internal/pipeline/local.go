package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mcq-agents/internal/cache"
	"mcq-agents/internal/dataset"
	"mcq-agents/internal/extract"
	"mcq-agents/internal/llm"
	"mcq-agents/internal/prompt"
	"mcq-agents/internal/refine"
	"mcq-agents/internal/retriever"
	"mcq-agents/internal/splitter"
)

// LocalOptions tunes the in-process resolver.
type LocalOptions struct {
	TopK     int // retrieved passages per question
	CacheTTL time.Duration
}

// Local resolves questions in-process through the full chain. All
// failures degrade to the default answer; Resolve never returns an error.
type Local struct {
	log       *slog.Logger
	splitter  *splitter.Splitter
	retriever retriever.Retriever
	refiner   *refine.Refiner
	prompts   *prompt.Builder
	llm       llm.Client
	cache     cache.Cache
	opts      LocalOptions
}

// NewLocal wires the resolver. rt may be retriever.Noop and c the no-op
// cache.
func NewLocal(log *slog.Logger, sp *splitter.Splitter, rt retriever.Retriever, rf *refine.Refiner, pb *prompt.Builder, client llm.Client, c cache.Cache, opts LocalOptions) *Local {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Local{
		log:       log,
		splitter:  sp,
		retriever: rt,
		refiner:   rf,
		prompts:   pb,
		llm:       client,
		cache:     c,
		opts:      opts,
	}
}

func (l *Local) Resolve(ctx context.Context, q dataset.Question) (Result, error) {
	labels := q.Labels()

	// Context split
	passage, remainder := l.splitter.Split(q.RawText)

	// Retrieval only grounds questions that carry no embedded passage.
	var retrieved []string
	if passage == "" {
		passages, err := l.retriever.Retrieve(ctx, remainder, l.opts.TopK)
		if err != nil {
			l.log.Warn("retrieval failed, answering without grounding", "qid", q.QID, "err", err)
		}
		for _, p := range passages {
			if p.Title != "" {
				retrieved = append(retrieved, fmt.Sprintf("%s: %s", p.Title, p.Text))
			} else {
				retrieved = append(retrieved, p.Text)
			}
		}
	} else {
		passage = l.refiner.Refine(ctx, passage, remainder)
	}

	promptText := l.prompts.Build(passage, retrieved, remainder, q.FormatChoices(), labels)

	completion, seconds, err := l.complete(ctx, q.QID, promptText)
	if err != nil {
		l.log.Error("llm failed after retries, emitting default answer", "qid", q.QID, "err", err)
		res := DefaultResult(q)
		res.Seconds = seconds
		return res, nil
	}

	if completion == "" {
		// Content-policy refusal: the refusal choice, when present, is
		// the intended answer.
		l.log.Warn("empty completion, checking for refusal choice", "qid", q.QID)
		res := l.degrade(q, labels)
		res.Seconds = seconds
		return res, nil
	}

	label, method := extract.Extract(completion, labels)
	if label == "" {
		label = DefaultAnswer(q)
	}
	if !method.Extracted() {
		l.log.Warn("no label found in completion, emitting default", "qid", q.QID)
	}
	return Result{QID: q.QID, Answer: label, Method: method.String(), Seconds: seconds}, nil
}

// complete runs the cache-wrapped LLM call and measures its wall clock,
// covering every retry attempt and backoff sleep.
func (l *Local) complete(ctx context.Context, qid, promptText string) (string, float64, error) {
	key := cache.Key(promptText)
	start := time.Now()

	if cached, hit, err := l.cache.GetCompletion(ctx, key); err == nil && hit {
		l.log.Debug("completion cache hit", "qid", qid)
		return cached, time.Since(start).Seconds(), nil
	} else if err != nil {
		l.log.Warn("cache read failed", "qid", qid, "err", err)
	}

	completion, err := l.llm.Complete(ctx, promptText)
	seconds := time.Since(start).Seconds()
	if err != nil {
		return "", seconds, err
	}

	if completion != "" {
		if err := l.cache.SetCompletion(ctx, key, completion, l.opts.CacheTTL); err != nil {
			l.log.Warn("cache write failed", "qid", qid, "err", err)
		}
	}
	return completion, seconds, nil
}

func (l *Local) degrade(q dataset.Question, labels []string) Result {
	texts := make([]string, len(q.Choices))
	for i, c := range q.Choices {
		texts[i] = c.Text
	}
	if refusal := extract.RefusalOption(labels, texts); refusal != "" {
		l.log.Info("refusal choice selected", "qid", q.QID, "answer", refusal)
		return Result{QID: q.QID, Answer: refusal, Method: "refusal"}
	}
	return DefaultResult(q)
}
