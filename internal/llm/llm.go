package llm

import (
	"context"
	"fmt"
)

// Client is a minimal LLM interface to allow pluggable providers.
//
// Complete returns the raw completion text. An empty string with a nil
// error means the gateway accepted the request but produced no content
// (content-policy refusals surface this way); callers decide the fallback.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// FailureKind classifies gateway failures.
type FailureKind int

const (
	// FailureAuth: credential rejected. Not retried on the same
	// credential; the client rotates to the next one.
	FailureAuth FailureKind = iota
	// FailureRateLimited: quota exceeded, retried with backoff.
	FailureRateLimited
	// FailureTimeout: request deadline exceeded, retried.
	FailureTimeout
	// FailureServer: transient 5xx or network error, retried.
	FailureServer
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "auth"
	case FailureRateLimited:
		return "rate_limited"
	case FailureTimeout:
		return "timeout"
	case FailureServer:
		return "server"
	}
	return "unknown"
}

// Failure is a typed gateway failure returned after retries are exhausted.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("llm %s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }
