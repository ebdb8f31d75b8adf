// Package refine shrinks an oversized embedded context before prompting:
// the passage is chunked, chunks are ranked against the question by
// embedding similarity, and the best ones are re-stitched in source order
// so the narrative flow survives.
package refine

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"mcq-agents/internal/chunker"
	"mcq-agents/internal/embeddings"
)

// Options tunes refinement. Zero values fall back to defaults.
type Options struct {
	Threshold  int // chars; passages at or below pass through untouched
	ChunkWords int // chunk size for ranking
	TopK       int // chunks kept
	MaxChars   int // hard cap applied after refinement
}

const (
	defaultThreshold  = 1500
	defaultChunkWords = 200
	defaultTopK       = 5
	defaultMaxChars   = 105000
)

// Refiner ranks context chunks with an embedder. A nil embedder degrades
// to plain truncation.
type Refiner struct {
	log      *slog.Logger
	embedder embeddings.Embedder
	opts     Options
}

// New builds a Refiner.
func New(log *slog.Logger, embedder embeddings.Embedder, opts Options) *Refiner {
	if opts.Threshold <= 0 {
		opts.Threshold = defaultThreshold
	}
	if opts.ChunkWords <= 0 {
		opts.ChunkWords = defaultChunkWords
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = defaultMaxChars
	}
	return &Refiner{log: log, embedder: embedder, opts: opts}
}

// Refine returns the context to use in the prompt for the given question.
// Short contexts pass through; long ones are reduced to the most relevant
// chunks; everything is capped at MaxChars.
func (r *Refiner) Refine(ctx context.Context, passage, question string) string {
	if len(passage) <= r.opts.Threshold {
		return passage
	}
	if r.embedder == nil {
		return truncate(passage, r.opts.MaxChars)
	}

	chunks := chunker.ChunkText(passage, chunker.Options{MaxTokens: r.opts.ChunkWords})
	if len(chunks) <= 1 {
		return truncate(passage, r.opts.MaxChars)
	}

	queryVec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		r.log.Warn("refinement embed failed, truncating instead", "err", err)
		return truncate(passage, r.opts.MaxChars)
	}

	type scored struct {
		index int
		score float32
	}
	ranked := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		vec, err := r.embedder.Embed(ctx, c.Text)
		if err != nil {
			r.log.Warn("refinement chunk embed failed, truncating instead", "err", err)
			return truncate(passage, r.opts.MaxChars)
		}
		ranked = append(ranked, scored{index: c.Index, score: embeddings.CosineSimilarity(queryVec, vec)})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	keep := ranked
	if len(keep) > r.opts.TopK {
		keep = keep[:r.opts.TopK]
	}
	// Back to source order so the stitched text still reads forward.
	sort.Slice(keep, func(i, j int) bool { return keep[i].index < keep[j].index })

	parts := make([]string, len(keep))
	for i, s := range keep {
		parts[i] = chunks[s.index].Text
	}
	return truncate(strings.Join(parts, "\n\n...\n\n"), r.opts.MaxChars)
}

// truncate cuts s at a rune boundary at or below max bytes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
