// Command worker consumes questions from the answering queue and
// resolves them with the in-process pipeline. Run several workers
// against one NATS server to spread a batch across machines.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mcq-agents/internal/app"
	"mcq-agents/internal/pipeline"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	if deps.Queue == nil {
		deps.Log.Error("worker requires QUEUE_PROVIDER=nats")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps.Log.Info("worker consuming questions")
	handler := pipeline.WorkerHandler(deps.LocalResolver())
	if err := deps.Queue.Serve(ctx, handler); err != nil && ctx.Err() == nil {
		deps.Log.Error("worker stopped", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("worker shut down")
}
