// Package splitter separates an embedded context passage from the question
// body of a raw multiple-choice record.
package splitter

import (
	"regexp"
	"strings"
)

// Options controls the recognized marker sets. The defaults cover the
// formats observed in the question corpus; deployments with other corpora
// can extend them.
type Options struct {
	// ContextMarkers are prefixes that introduce a context block. A split
	// is attempted only when the text starts with one of these, so a
	// marker appearing inside a choice's text never triggers.
	ContextMarkers []string

	// QuestionMarkers introduce the actual question after the context
	// block. The split happens at the LAST occurrence, since the context
	// itself may quote the phrase.
	QuestionMarkers []string

	// StripMarkers are context markers that are pure introducer labels and
	// are excluded from the extracted context. Enumerated markers such as
	// "[1]" stay so multiple passages remain distinguishable.
	StripMarkers []string
}

// DefaultOptions returns the marker sets for the standard corpus format.
func DefaultOptions() Options {
	return Options{
		ContextMarkers:  []string{"Đoạn thông tin", "[1]", "-- Đoạn văn", "-- Document", "Title:"},
		QuestionMarkers: []string{"Câu hỏi", "Question"},
		StripMarkers:    []string{"Đoạn thông tin"},
	}
}

// Splitter performs marker-based context extraction. It is stateless and
// safe for concurrent use.
type Splitter struct {
	opts       Options
	questionRe *regexp.Regexp
}

// New builds a Splitter; zero-value fields of opts fall back to defaults.
func New(opts Options) *Splitter {
	def := DefaultOptions()
	if len(opts.ContextMarkers) == 0 {
		opts.ContextMarkers = def.ContextMarkers
	}
	if len(opts.QuestionMarkers) == 0 {
		opts.QuestionMarkers = def.QuestionMarkers
	}
	if opts.StripMarkers == nil {
		opts.StripMarkers = def.StripMarkers
	}

	quoted := make([]string, len(opts.QuestionMarkers))
	for i, m := range opts.QuestionMarkers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	// Enforce the colon so phrases like "Câu hỏi này" inside the context
	// do not split.
	re := regexp.MustCompile(`(?:` + strings.Join(quoted, "|") + `)\s*:\s*`)

	return &Splitter{opts: opts, questionRe: re}
}

// Split extracts the context passage from raw, returning the context (empty
// when none) and the remainder holding the question and choices. Calling
// Split on its own remainder returns the remainder unchanged.
func (s *Splitter) Split(raw string) (context, remainder string) {
	text := strings.TrimSpace(raw)

	if !s.startsWithMarker(text) {
		return "", raw
	}

	matches := s.questionRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return "", raw
	}
	last := matches[len(matches)-1]

	context = strings.TrimSpace(text[:last[0]])
	remainder = strings.TrimSpace(text[last[1]:])
	context = s.stripIntroducer(context)
	return context, remainder
}

func (s *Splitter) startsWithMarker(text string) bool {
	for _, m := range s.opts.ContextMarkers {
		if strings.HasPrefix(text, m) {
			return true
		}
	}
	return false
}

func (s *Splitter) stripIntroducer(context string) string {
	for _, m := range s.opts.StripMarkers {
		if strings.HasPrefix(context, m) {
			rest := strings.TrimPrefix(context, m)
			rest = strings.TrimLeft(rest, ": \t\n")
			return rest
		}
	}
	return context
}

var defaultSplitter = New(Options{})

// Split applies the default marker sets.
func Split(raw string) (context, remainder string) {
	return defaultSplitter.Split(raw)
}
