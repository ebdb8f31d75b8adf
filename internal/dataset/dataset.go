package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// labelAlphabet is the ordered label space for choices.
const labelAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Choice is one enumerated option of a question.
type Choice struct {
	Label string
	Text  string
}

// Question is one immutable input record.
type Question struct {
	QID         string
	RawText     string
	Choices     []Choice
	GroundTruth string // optional, validation sets only
}

// Labels returns the ordered valid label set for this question.
func (q Question) Labels() []string {
	labels := make([]string, len(q.Choices))
	for i, c := range q.Choices {
		labels[i] = c.Label
	}
	return labels
}

// FormatChoices renders choices one per line as "A. text".
func (q Question) FormatChoices() string {
	var b strings.Builder
	for i, c := range q.Choices {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Label)
		b.WriteString(". ")
		b.WriteString(c.Text)
	}
	return b.String()
}

// MakeChoices labels raw option texts A, B, C... in order. Options past
// the label alphabet are dropped.
func MakeChoices(texts []string) []Choice {
	choices := make([]Choice, 0, len(texts))
	for i, text := range texts {
		if i >= len(labelAlphabet) {
			break
		}
		choices = append(choices, Choice{Label: string(labelAlphabet[i]), Text: text})
	}
	return choices
}

type record struct {
	QID      string   `json:"qid"`
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
	Answer   string   `json:"answer"`
}

// Load reads a question set from a JSON file. Records with missing fields
// are kept with whatever they carry so the batch still emits a row for
// them; only an unreadable file is fatal.
func Load(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question set %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of question records.
func Parse(data []byte) ([]Question, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode question set: %w", err)
	}

	questions := make([]Question, 0, len(records))
	for _, r := range records {
		q := Question{
			QID:         r.QID,
			RawText:     r.Question,
			GroundTruth: strings.ToUpper(strings.TrimSpace(r.Answer)),
		}
		q.Choices = MakeChoices(r.Choices)
		questions = append(questions, q)
	}
	return questions, nil
}
