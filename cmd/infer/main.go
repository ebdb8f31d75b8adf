// Command infer runs the batch: it answers every question in the input
// file and writes submission.csv and submission_time.csv, resuming from
// the checkpoint when one exists.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"mcq-agents/internal/app"
	"mcq-agents/internal/dataset"
	"mcq-agents/internal/pipeline"
	"mcq-agents/internal/submission"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	if err := run(deps); err != nil {
		deps.Log.Error("batch failed", "err", err)
		os.Exit(1)
	}
}

func run(deps app.Deps) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	questions, err := dataset.Load(deps.Config.InputFile)
	if err != nil {
		return err
	}
	deps.Log.Info("loaded question set", "file", deps.Config.InputFile, "questions", len(questions))

	if err := os.MkdirAll(deps.Config.OutputDir, 0o755); err != nil {
		return err
	}

	checkpoint, err := submission.LoadCheckpoint(deps.Config.CheckpointFile)
	if err != nil {
		return err
	}
	if checkpoint.Len() > 0 {
		deps.Log.Info("resuming from checkpoint", "answered", checkpoint.Len())
	}

	orch := pipeline.NewOrchestrator(deps.Log, deps.Resolver(), deps.Config.Workers)
	orch.OnResult = func(res pipeline.Result) {
		checkpoint.Add(res)
		if err := checkpoint.Save(); err != nil {
			deps.Log.Warn("checkpoint save failed", "qid", res.QID, "err", err)
		}
	}

	results, stats, runErr := orch.Run(ctx, questions, checkpoint.Results())
	if runErr != nil {
		// The run was cut short; results still cover every question, so
		// write what we have before reporting.
		deps.Log.Warn("batch interrupted", "err", runErr)
	}
	deps.Log.Info("batch finished",
		"answered", stats.Answered,
		"defaulted", stats.Defaulted,
		"reused", stats.Reused,
	)

	answersPath := filepath.Join(deps.Config.OutputDir, "submission.csv")
	if err := submission.WriteAnswers(answersPath, results); err != nil {
		return err
	}
	timedPath := filepath.Join(deps.Config.OutputDir, "submission_time.csv")
	if err := submission.WriteTimed(timedPath, results); err != nil {
		return err
	}
	deps.Log.Info("wrote submissions", "answers", answersPath, "timed", timedPath)

	if correct, graded := submission.Accuracy(questions, results); graded > 0 {
		deps.Log.Info("accuracy against ground truth",
			"correct", correct,
			"graded", graded,
			"accuracy", float64(correct)/float64(graded),
		)
	}
	return runErr
}
