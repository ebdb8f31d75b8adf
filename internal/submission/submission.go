// Package submission writes the batch outputs: the answer CSV, the timed
// answer CSV and the resumable checkpoint. Rows follow input order and
// cover exactly the input qid set.
package submission

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"mcq-agents/internal/dataset"
	"mcq-agents/internal/pipeline"
)

// WriteAnswers writes `qid,answer` rows.
func WriteAnswers(path string, results []pipeline.Result) error {
	return writeCSV(path, []string{"qid", "answer"}, results, func(r pipeline.Result) []string {
		return []string{r.QID, r.Answer}
	})
}

// WriteTimed writes `qid,answer,time` rows with the per-question LLM wall
// clock in seconds, four decimal places.
func WriteTimed(path string, results []pipeline.Result) error {
	return writeCSV(path, []string{"qid", "answer", "time"}, results, func(r pipeline.Result) []string {
		return []string{r.QID, r.Answer, strconv.FormatFloat(r.Seconds, 'f', 4, 64)}
	})
}

func writeCSV(path string, header []string, results []pipeline.Result, row func(pipeline.Result) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range results {
		if err := w.Write(row(r)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.QID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// Accuracy grades results against the ground-truth answers carried by the
// question set. Questions without a ground truth are skipped. graded
// reports how many questions were gradable.
func Accuracy(questions []dataset.Question, results []pipeline.Result) (correct, graded int) {
	byQID := make(map[string]string, len(results))
	for _, r := range results {
		byQID[r.QID] = r.Answer
	}
	for _, q := range questions {
		if q.GroundTruth == "" {
			continue
		}
		graded++
		if byQID[q.QID] == q.GroundTruth {
			correct++
		}
	}
	return correct, graded
}
