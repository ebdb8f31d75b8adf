package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"mcq-agents/internal/credentials"
	"mcq-agents/internal/retry"
)

// Options tunes the gateway client. Zero values fall back to defaults.
type Options struct {
	Temperature    float64
	Seed           int64
	MaxTokens      int64
	MaxAttempts    int
	RequestTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

const (
	defaultMaxAttempts    = 5
	defaultRequestTimeout = 300 * time.Second
	defaultBackoffBase    = 5 * time.Second
	defaultBackoffMax     = 120 * time.Second
	defaultMaxTokens      = 2048
)

// GatewayClient calls the vendor's OpenAI-compatible chat completions
// endpoint with credential rotation and bounded retries.
type GatewayClient struct {
	baseURL string
	model   openai.ChatModel
	pool    *credentials.Pool
	opts    Options
	log     *slog.Logger

	mu      sync.Mutex
	clients map[string]*openai.Client // one SDK client per credential
}

// NewGatewayClient builds the client. The pool must hold at least one
// credential; SDK-level retries are disabled since retry policy and
// latency accounting live here.
func NewGatewayClient(log *slog.Logger, baseURL, model string, pool *credentials.Pool, opts Options) (*GatewayClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	if pool == nil || pool.Valid() == 0 {
		return nil, fmt.Errorf("at least one credential required")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &GatewayClient{
		baseURL: baseURL,
		model:   openai.ChatModel(model),
		pool:    pool,
		opts:    opts,
		log:     log,
		clients: make(map[string]*openai.Client),
	}, nil
}

// Complete sends the prompt and returns completion text. Auth failures
// invalidate the credential and rotate without counting against the retry
// cap; rate limits, timeouts and 5xx are retried with capped exponential
// backoff. After the cap a typed *Failure is returned.
func (c *GatewayClient) Complete(ctx context.Context, prompt string) (string, error) {
	var lastFailure *Failure

	for attempt := 0; attempt < c.opts.MaxAttempts; {
		cred, err := c.pool.Acquire()
		if err != nil {
			return "", &Failure{Kind: FailureAuth, Err: err}
		}

		text, err := c.attempt(ctx, cred, prompt)
		if err == nil {
			return text, nil
		}

		kind, retryable := classify(err)
		if kind == FailureAuth {
			c.pool.MarkInvalid(cred.Name)
			c.log.Warn("credential rejected, rotating", "credential", cred.Name, "err", err)
			lastFailure = &Failure{Kind: FailureAuth, Err: err}
			// Rotation is bounded by pool size, not the attempt cap.
			continue
		}
		if !retryable {
			return "", fmt.Errorf("llm request failed: %w", err)
		}

		lastFailure = &Failure{Kind: kind, Err: err}
		attempt++
		if attempt >= c.opts.MaxAttempts {
			break
		}

		wait := retry.CappedExponentialBackoff(attempt-1, c.opts.BackoffBase, c.opts.BackoffMax)
		c.log.Warn("llm attempt failed, backing off",
			"attempt", attempt, "kind", kind.String(), "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return "", &Failure{Kind: FailureTimeout, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return "", lastFailure
}

func (c *GatewayClient) attempt(ctx context.Context, cred credentials.Credential, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	cli := c.clientFor(cred)
	resp, err := cli.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Temperature:         openai.Float(c.opts.Temperature),
		Seed:                openai.Int(c.opts.Seed),
		MaxCompletionTokens: openai.Int(c.opts.MaxTokens),
	})
	if err != nil {
		return "", err
	}
	// An accepted request with no content is the gateway's content-policy
	// refusal shape; surfaced as empty text, not an error.
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *GatewayClient) clientFor(cred credentials.Credential) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cli, ok := c.clients[cred.Name]; ok {
		return cli
	}
	cli := openai.NewClient(
		option.WithBaseURL(c.baseURL),
		option.WithAPIKey(cred.Authorization),
		option.WithHeader("Token-id", cred.TokenID),
		option.WithHeader("Token-key", cred.TokenKey),
		option.WithMaxRetries(0),
	)
	c.clients[cred.Name] = &cli
	return &cli
}

// classify maps an SDK error to a failure kind and whether it is worth
// retrying.
func classify(err error) (FailureKind, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout, true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return FailureAuth, false
		case apiErr.StatusCode == 429:
			return FailureRateLimited, true
		case apiErr.StatusCode >= 500:
			return FailureServer, true
		default:
			// Other 4xx are caller errors; retrying will not help.
			return FailureServer, false
		}
	}
	// Connection resets and other transport errors.
	return FailureServer, true
}
