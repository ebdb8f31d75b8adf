// Package extract resolves the raw completion text of a model into exactly
// one choice label, via an ordered pattern cascade with a guaranteed
// default. Extraction is total: it never fails, it only degrades.
package extract

import (
	"regexp"
	"strings"
)

// Method records which cascade stage produced the label. MethodDefault
// marks a total extraction miss, distinguishable from a genuine model
// choice even though the emitted answer looks the same.
type Method int

const (
	MethodInstructed Method = iota // "Đáp án: X" / "Answer: X" line
	MethodDelimited                // "X." / "X)" / "X:" at response start
	MethodBare                     // response is the label, or first/last token
	MethodScan                     // first isolated label anywhere
	MethodDefault                  // nothing matched, first label emitted
)

func (m Method) String() string {
	switch m {
	case MethodInstructed:
		return "instructed"
	case MethodDelimited:
		return "delimited"
	case MethodBare:
		return "bare"
	case MethodScan:
		return "scan"
	case MethodDefault:
		return "default"
	}
	return "unknown"
}

// Extracted reports whether the method represents a real extraction rather
// than the fallback default.
func (m Method) Extracted() bool { return m != MethodDefault }

var (
	// The label capture is filled per-call from the question's label set.
	// The trailing guard stops "Đáp án: Cả hai" from matching C.
	instructedRe = `(?:ĐÁP ÁN|ANSWER)(?:.*?(?:LÀ|IS))?[^\p{L}\p{N}]*(%s)(?:[^\p{L}\p{N}]|$)`
	delimitedRe  = `^[^\p{L}\p{N}]*(%s)[.):]`
	isolatedRe   = `(?:^|[^\p{L}\p{N}])(%s)(?:[^\p{L}\p{N}]|$)`
)

// Extract returns the answer label for a completion and the cascade stage
// that produced it. The cascade prefers the instructed answer format over
// looser heuristics so incidental letters in reasoning text do not win.
// When nothing matches, the first valid label is returned with
// MethodDefault.
func Extract(completion string, labels []string) (string, Method) {
	if len(labels) == 0 {
		return "", MethodDefault
	}
	valid := make(map[string]bool, len(labels))
	for _, l := range labels {
		valid[strings.ToUpper(l)] = true
	}
	class := labelClass(labels)
	text := strings.ToUpper(strings.TrimSpace(completion))

	// Stage 1: instructed format, last occurrence wins. A chain-of-thought
	// transcript may discuss wrong options before concluding.
	re := regexp.MustCompile(strings.ReplaceAll(instructedRe, "%s", class))
	matches := re.FindAllStringSubmatch(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if valid[matches[i][1]] {
			return matches[i][1], MethodInstructed
		}
	}

	// Stage 2: a standalone label with a delimiter at the response start.
	re = regexp.MustCompile(strings.ReplaceAll(delimitedRe, "%s", class))
	if m := re.FindStringSubmatch(text); m != nil && valid[m[1]] {
		return m[1], MethodDelimited
	}

	// Stage 3: the whole response, or its first/last token, is the label.
	if label, ok := bareToken(text, valid); ok {
		return label, MethodBare
	}

	// Stage 4: best-effort scan for the first isolated label anywhere.
	re = regexp.MustCompile(strings.ReplaceAll(isolatedRe, "%s", class))
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if valid[m[1]] {
			return m[1], MethodScan
		}
	}

	// Stage 5: deterministic default.
	return strings.ToUpper(labels[0]), MethodDefault
}

func labelClass(labels []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, l := range labels {
		b.WriteString(regexp.QuoteMeta(strings.ToUpper(l)))
	}
	b.WriteByte(']')
	return b.String()
}

func bareToken(text string, valid map[string]bool) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	first := strings.Trim(fields[0], ".,:;()*\"'")
	last := strings.Trim(fields[len(fields)-1], ".,:;()*\"'")
	if len(fields) == 1 && valid[first] {
		return first, true
	}
	if valid[first] {
		return first, true
	}
	if valid[last] {
		return last, true
	}
	return "", false
}

// refusalKeywords mark choices whose text is itself a refusal to answer.
// When the gateway suppresses a completion on content-policy grounds, the
// refusal choice is the intended answer.
var refusalKeywords = []string{
	"tôi không thể trả lời",
	"tôi không thể cung cấp",
	"từ chối trả lời",
	"không thể trả lời câu hỏi",
	"tôi không thể hỗ trợ",
	"xin lỗi, tôi không thể",
}

// RefusalOption returns the label of the first choice whose text matches a
// refusal phrase, or "" when no choice does. choiceTexts is ordered like
// labels.
func RefusalOption(labels []string, choiceTexts []string) string {
	for i, text := range choiceTexts {
		if i >= len(labels) {
			break
		}
		lower := strings.ToLower(text)
		for _, k := range refusalKeywords {
			if strings.Contains(lower, k) {
				return strings.ToUpper(labels[i])
			}
		}
	}
	return ""
}
