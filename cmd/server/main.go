// Command server answers single questions over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"mcq-agents/internal/app"
	"mcq-agents/internal/dataset"
	"mcq-agents/internal/httputil"
	"mcq-agents/internal/pipeline"
)

type answerRequest struct {
	QID      string   `json:"qid" validate:"omitempty,max=64"`
	Question string   `json:"question" validate:"required,min=3"`
	Choices  []string `json:"choices" validate:"required,min=2,max=26,dive,required"`
}

type answerResponse struct {
	QID     string  `json:"qid,omitempty"`
	Answer  string  `json:"answer"`
	Method  string  `json:"method"`
	Seconds float64 `json:"seconds"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	resolver := deps.LocalResolver()

	// Request timeout with headroom over the LLM attempt deadline.
	timeout := time.Duration(deps.Config.RequestTimeout)*time.Second + 30*time.Second
	r := httputil.NewRouter(deps.Log, timeout)

	r.Post("/api/answer", answerHandler(deps, resolver))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("answer service listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server error", "err", err)
	}
}

func answerHandler(deps app.Deps, resolver pipeline.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		q := dataset.Question{
			QID:     req.QID,
			RawText: req.Question,
			Choices: dataset.MakeChoices(req.Choices),
		}
		res, err := resolver.Resolve(r.Context(), q)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to answer question", err, http.StatusInternalServerError)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, answerResponse{
			QID:     res.QID,
			Answer:  res.Answer,
			Method:  res.Method,
			Seconds: res.Seconds,
		})
	}
}
