package refine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"

	"mcq-agents/internal/embeddings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefineShortContextPassesThrough(t *testing.T) {
	r := New(testLogger(), nil, Options{Threshold: 100})
	passage := "short passage"
	if got := r.Refine(context.Background(), passage, "q"); got != passage {
		t.Errorf("short context must pass through, got %q", got)
	}
}

func TestRefineWithoutEmbedderTruncates(t *testing.T) {
	r := New(testLogger(), nil, Options{Threshold: 10, MaxChars: 30})
	passage := strings.Repeat("từ ", 50)

	got := r.Refine(context.Background(), passage, "q")
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Errorf("expected truncation suffix, got %q", got)
	}
	if len(got) > 30+len("...(truncated)") {
		t.Errorf("truncated context too long: %d bytes", len(got))
	}
}

func TestRefineKeepsRelevantChunksInOrder(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	// Two chunks of 3 words each; the second scores higher against the
	// question but both are kept and must appear in source order.
	passage := "alpha beta gamma delta epsilon zeta"
	emb.On("Embed", mock.Anything, "the question").Return(embeddings.Vector{1, 0}, nil).Once()
	emb.On("Embed", mock.Anything, "alpha beta gamma").Return(embeddings.Vector{0.5, 0.5}, nil).Once()
	emb.On("Embed", mock.Anything, "delta epsilon zeta").Return(embeddings.Vector{1, 0}, nil).Once()

	r := New(testLogger(), emb, Options{Threshold: 10, ChunkWords: 3, TopK: 2, MaxChars: 1000})
	got := r.Refine(context.Background(), passage, "the question")

	alphaIdx := strings.Index(got, "alpha")
	deltaIdx := strings.Index(got, "delta")
	if alphaIdx < 0 || deltaIdx < 0 {
		t.Fatalf("expected both chunks kept, got %q", got)
	}
	if alphaIdx > deltaIdx {
		t.Error("kept chunks must be stitched in source order")
	}
	emb.AssertExpectations(t)
}

func TestRefineDropsLowScoringChunks(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	passage := "alpha beta gamma delta epsilon zeta"
	emb.On("Embed", mock.Anything, "q").Return(embeddings.Vector{1, 0}, nil).Once()
	emb.On("Embed", mock.Anything, "alpha beta gamma").Return(embeddings.Vector{0, 1}, nil).Once()
	emb.On("Embed", mock.Anything, "delta epsilon zeta").Return(embeddings.Vector{1, 0}, nil).Once()

	r := New(testLogger(), emb, Options{Threshold: 10, ChunkWords: 3, TopK: 1, MaxChars: 1000})
	got := r.Refine(context.Background(), passage, "q")

	if strings.Contains(got, "alpha") {
		t.Errorf("low-scoring chunk should be dropped, got %q", got)
	}
	if !strings.Contains(got, "delta epsilon zeta") {
		t.Errorf("high-scoring chunk missing, got %q", got)
	}
}

func TestRefineEmbedFailureFallsBackToTruncation(t *testing.T) {
	emb := &embeddings.MockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("embedder down"))

	r := New(testLogger(), emb, Options{Threshold: 10, ChunkWords: 2, MaxChars: 20})
	passage := strings.Repeat("word ", 20)
	got := r.Refine(context.Background(), passage, "q")

	if !strings.HasSuffix(got, "...(truncated)") {
		t.Errorf("expected truncation fallback, got %q", got)
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("ă", 50) // 2 bytes each
	got := truncate(s, 31)

	trimmed := strings.TrimSuffix(got, "...(truncated)")
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Fatalf("expected suffix, got %q", got)
	}
	for _, r := range trimmed {
		if r != 'ă' {
			t.Fatalf("rune corrupted by truncation: %q", trimmed)
		}
	}
}
