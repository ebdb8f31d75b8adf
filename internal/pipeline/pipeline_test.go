package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"mcq-agents/internal/cache"
	"mcq-agents/internal/dataset"
	"mcq-agents/internal/llm"
	"mcq-agents/internal/prompt"
	"mcq-agents/internal/queue"
	"mcq-agents/internal/refine"
	"mcq-agents/internal/retriever"
	"mcq-agents/internal/splitter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testQuestion(qid string) dataset.Question {
	return dataset.Question{
		QID:     qid,
		RawText: "Thủ đô của Việt Nam là gì?",
		Choices: dataset.MakeChoices([]string{"Huế", "Đà Nẵng", "Hà Nội", "Cần Thơ"}),
	}
}

func newTestLocal(client llm.Client, rt retriever.Retriever, c cache.Cache) *Local {
	log := testLogger()
	if rt == nil {
		rt = retriever.Noop{}
	}
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return NewLocal(log,
		splitter.New(splitter.DefaultOptions()),
		rt,
		refine.New(log, nil, refine.Options{}),
		prompt.NewBuilder(prompt.ModeAuto),
		client, c, LocalOptions{})
}

func TestLocalResolveExtractsAnswer(t *testing.T) {
	client := new(llm.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Return("Giải thích: Hà Nội là thủ đô.\nĐáp án: C", nil)

	local := newTestLocal(client, nil, nil)
	res, err := local.Resolve(context.Background(), testQuestion("q1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Answer != "C" {
		t.Errorf("Answer = %q, want %q", res.Answer, "C")
	}
	if res.Method != "instructed" {
		t.Errorf("Method = %q, want %q", res.Method, "instructed")
	}
	if res.Seconds < 0 {
		t.Errorf("Seconds = %v, want >= 0", res.Seconds)
	}
	client.AssertExpectations(t)
}

func TestLocalResolveCacheHit(t *testing.T) {
	client := new(llm.MockClient)
	c := new(cache.MockCache)
	c.On("GetCompletion", mock.Anything, mock.Anything).Return("Đáp án: B", true, nil)

	local := newTestLocal(client, nil, c)
	res, err := local.Resolve(context.Background(), testQuestion("q1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Answer != "B" {
		t.Errorf("Answer = %q, want %q", res.Answer, "B")
	}
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	c.AssertNotCalled(t, "SetCompletion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLocalResolveCachesCompletion(t *testing.T) {
	client := new(llm.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return("Đáp án: A", nil)
	c := new(cache.MockCache)
	c.On("GetCompletion", mock.Anything, mock.Anything).Return("", false, nil)
	c.On("SetCompletion", mock.Anything, mock.Anything, "Đáp án: A", mock.Anything).Return(nil)

	local := newTestLocal(client, nil, c)
	if _, err := local.Resolve(context.Background(), testQuestion("q1")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	c.AssertExpectations(t)
}

func TestLocalResolveLLMFailureDefaults(t *testing.T) {
	client := new(llm.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Return("", &llm.Failure{Kind: llm.FailureRateLimited, Err: errors.New("429")})

	local := newTestLocal(client, nil, nil)
	res, err := local.Resolve(context.Background(), testQuestion("q1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v, want degradation without error", err)
	}
	if res.Answer != "A" {
		t.Errorf("Answer = %q, want default %q", res.Answer, "A")
	}
	if res.Method != "default" {
		t.Errorf("Method = %q, want %q", res.Method, "default")
	}
}

func TestLocalResolveEmptyCompletionPicksRefusalChoice(t *testing.T) {
	client := new(llm.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return("", nil)

	q := dataset.Question{
		QID:     "q1",
		RawText: "Câu hỏi nhạy cảm?",
		Choices: dataset.MakeChoices([]string{
			"Phương án một",
			"Phương án hai",
			"Tôi không thể trả lời câu hỏi này",
		}),
	}
	local := newTestLocal(client, nil, nil)
	res, err := local.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Answer != "C" {
		t.Errorf("Answer = %q, want refusal choice %q", res.Answer, "C")
	}
	if res.Method != "refusal" {
		t.Errorf("Method = %q, want %q", res.Method, "refusal")
	}
}

func TestLocalResolveEmptyCompletionWithoutRefusalDefaults(t *testing.T) {
	client := new(llm.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return("", nil)

	local := newTestLocal(client, nil, nil)
	res, err := local.Resolve(context.Background(), testQuestion("q1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Answer != "A" || res.Method != "default" {
		t.Errorf("got (%q, %q), want default row", res.Answer, res.Method)
	}
}

func TestLocalResolveRetrievesWhenNoEmbeddedContext(t *testing.T) {
	rt := new(retriever.MockRetriever)
	rt.On("Retrieve", mock.Anything, mock.Anything, 3).Return([]retriever.Passage{
		{Title: "Địa lý", Text: "Hà Nội là thủ đô của Việt Nam.", Score: 0.9},
	}, nil)

	var sent string
	client := new(llm.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.String(1) }).
		Return("Đáp án: C", nil)

	local := newTestLocal(client, rt, nil)
	if _, err := local.Resolve(context.Background(), testQuestion("q1")); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.Contains(sent, "Hà Nội là thủ đô của Việt Nam.") {
		t.Errorf("prompt missing retrieved passage:\n%s", sent)
	}
	rt.AssertExpectations(t)
}

func TestLocalResolveSkipsRetrievalWithEmbeddedContext(t *testing.T) {
	rt := new(retriever.MockRetriever)
	client := new(llm.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return("Đáp án: A", nil)

	q := dataset.Question{
		QID: "q1",
		RawText: "Đoạn thông tin: Hà Nội là thủ đô của Việt Nam.\n" +
			"Câu hỏi: Thủ đô của Việt Nam là gì?",
		Choices: dataset.MakeChoices([]string{"Hà Nội", "Huế"}),
	}
	local := newTestLocal(client, rt, nil)
	if _, err := local.Resolve(context.Background(), q); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	rt.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything)
}

func TestLocalResolveRetrievalFailureStillAnswers(t *testing.T) {
	rt := new(retriever.MockRetriever)
	rt.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("store down"))
	client := new(llm.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return("Đáp án: B", nil)

	local := newTestLocal(client, rt, nil)
	res, err := local.Resolve(context.Background(), testQuestion("q1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Answer != "B" {
		t.Errorf("Answer = %q, want %q", res.Answer, "B")
	}
}

// resolverFunc adapts a function to the Resolver interface for tests.
type resolverFunc func(ctx context.Context, q dataset.Question) (Result, error)

func (f resolverFunc) Resolve(ctx context.Context, q dataset.Question) (Result, error) {
	return f(ctx, q)
}

func TestOrchestratorRunCoversEveryQuestionInOrder(t *testing.T) {
	questions := make([]dataset.Question, 10)
	for i := range questions {
		questions[i] = testQuestion(fmt.Sprintf("q%02d", i))
	}
	resolver := resolverFunc(func(ctx context.Context, q dataset.Question) (Result, error) {
		return Result{QID: q.QID, Answer: "B", Method: "instructed", Seconds: 0.1}, nil
	})

	o := NewOrchestrator(testLogger(), resolver, 4)
	results, stats, err := o.Run(context.Background(), questions, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != len(questions) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(questions))
	}
	for i, res := range results {
		if res.QID != questions[i].QID {
			t.Errorf("results[%d].QID = %q, want %q", i, res.QID, questions[i].QID)
		}
	}
	if stats.Answered != len(questions) {
		t.Errorf("Answered = %d, want %d", stats.Answered, len(questions))
	}
}

func TestOrchestratorDefaultsOnResolverError(t *testing.T) {
	questions := []dataset.Question{testQuestion("q1"), testQuestion("q2")}
	resolver := resolverFunc(func(ctx context.Context, q dataset.Question) (Result, error) {
		if q.QID == "q1" {
			return Result{}, errors.New("worker unreachable")
		}
		return Result{QID: q.QID, Answer: "C", Method: "scan"}, nil
	})

	o := NewOrchestrator(testLogger(), resolver, 2)
	results, stats, err := o.Run(context.Background(), questions, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].Answer != "A" || results[0].Method != "default" {
		t.Errorf("results[0] = %+v, want default row", results[0])
	}
	if results[1].Answer != "C" {
		t.Errorf("results[1].Answer = %q, want %q", results[1].Answer, "C")
	}
	if stats.Defaulted != 1 || stats.Answered != 1 {
		t.Errorf("stats = %+v, want 1 defaulted, 1 answered", stats)
	}
}

func TestOrchestratorReusesPriorResults(t *testing.T) {
	questions := []dataset.Question{testQuestion("q1"), testQuestion("q2")}
	var resolved []string
	var mu sync.Mutex
	resolver := resolverFunc(func(ctx context.Context, q dataset.Question) (Result, error) {
		mu.Lock()
		resolved = append(resolved, q.QID)
		mu.Unlock()
		return Result{QID: q.QID, Answer: "B", Method: "bare"}, nil
	})

	prior := map[string]Result{"q1": {QID: "q1", Answer: "D", Method: "instructed", Seconds: 1.5}}
	o := NewOrchestrator(testLogger(), resolver, 2)
	results, stats, err := o.Run(context.Background(), questions, prior)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].Answer != "D" || results[0].Seconds != 1.5 {
		t.Errorf("results[0] = %+v, want checkpointed result", results[0])
	}
	if len(resolved) != 1 || resolved[0] != "q2" {
		t.Errorf("resolved = %v, want only q2", resolved)
	}
	if stats.Reused != 1 {
		t.Errorf("Reused = %d, want 1", stats.Reused)
	}
}

func TestOrchestratorCancelledContextEmitsDefaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	questions := []dataset.Question{testQuestion("q1"), testQuestion("q2")}
	resolver := resolverFunc(func(ctx context.Context, q dataset.Question) (Result, error) {
		t.Error("resolver called after cancellation")
		return Result{}, nil
	})

	o := NewOrchestrator(testLogger(), resolver, 2)
	results, _, err := o.Run(ctx, questions, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(results) != len(questions) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(questions))
	}
	for i, res := range results {
		if res.Answer != "A" || res.Method != "default" {
			t.Errorf("results[%d] = %+v, want default row", i, res)
		}
	}
}

func TestOrchestratorOnResultCallback(t *testing.T) {
	questions := []dataset.Question{testQuestion("q1"), testQuestion("q2"), testQuestion("q3")}
	resolver := resolverFunc(func(ctx context.Context, q dataset.Question) (Result, error) {
		return Result{QID: q.QID, Answer: "A", Method: "bare"}, nil
	})

	var mu sync.Mutex
	seen := map[string]bool{}
	o := NewOrchestrator(testLogger(), resolver, 3)
	o.OnResult = func(res Result) {
		mu.Lock()
		seen[res.QID] = true
		mu.Unlock()
	}
	if _, _, err := o.Run(context.Background(), questions, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(seen) != len(questions) {
		t.Errorf("callback saw %d results, want %d", len(seen), len(questions))
	}
}

func TestRemoteResolve(t *testing.T) {
	q := new(queue.MockQueue)
	q.On("Ask", mock.Anything, mock.Anything).Return(queue.AnswerResponse{
		QID: "q1", Answer: "C", Method: "instructed", Seconds: 2.5,
	}, nil)

	remote := NewRemote(testLogger(), q)
	res, err := remote.Resolve(context.Background(), testQuestion("q1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := Result{QID: "q1", Answer: "C", Method: "instructed", Seconds: 2.5}
	if res != want {
		t.Errorf("Resolve() = %+v, want %+v", res, want)
	}
}

func TestRemoteResolveWorkerError(t *testing.T) {
	q := new(queue.MockQueue)
	q.On("Ask", mock.Anything, mock.Anything).Return(queue.AnswerResponse{
		QID: "q1", Err: "llm exhausted",
	}, nil)

	remote := NewRemote(testLogger(), q)
	if _, err := remote.Resolve(context.Background(), testQuestion("q1")); err == nil {
		t.Error("Resolve() error = nil, want worker error surfaced")
	}
}

func TestRemoteResolveTransportError(t *testing.T) {
	q := new(queue.MockQueue)
	q.On("Ask", mock.Anything, mock.Anything).
		Return(queue.AnswerResponse{}, context.DeadlineExceeded)

	remote := NewRemote(testLogger(), q)
	if _, err := remote.Resolve(context.Background(), testQuestion("q1")); err == nil {
		t.Error("Resolve() error = nil, want transport error")
	}
}

func TestWorkerHandlerAnswers(t *testing.T) {
	resolver := resolverFunc(func(ctx context.Context, q dataset.Question) (Result, error) {
		if q.QID != "q1" || len(q.Choices) != 4 || q.Choices[2].Label != "C" {
			t.Errorf("handler rebuilt question badly: %+v", q)
		}
		return Result{QID: q.QID, Answer: "C", Method: "delimited", Seconds: 0.3}, nil
	})

	handler := WorkerHandler(resolver)
	resp, err := handler(context.Background(), queue.AnswerRequest{
		QID:      "q1",
		Question: "Thủ đô của Việt Nam là gì?",
		Choices:  []string{"Huế", "Đà Nẵng", "Hà Nội", "Cần Thơ"},
	})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if resp.Answer != "C" || resp.Method != "delimited" || resp.Err != "" {
		t.Errorf("resp = %+v, want answered response", resp)
	}
}

func TestWorkerHandlerShipsErrorInBand(t *testing.T) {
	resolver := resolverFunc(func(ctx context.Context, q dataset.Question) (Result, error) {
		return Result{}, errors.New("no credentials left")
	})

	handler := WorkerHandler(resolver)
	resp, err := handler(context.Background(), queue.AnswerRequest{QID: "q1"})
	if err != nil {
		t.Fatalf("handler error = %v, want in-band error", err)
	}
	if resp.Err == "" || resp.QID != "q1" {
		t.Errorf("resp = %+v, want error carried in response", resp)
	}
}
