package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores raw model completions keyed by prompt hash, so identical
// prompts within a run (or across resumed runs) skip the gateway.
type Cache interface {
	// GetCompletion retrieves a cached completion. The bool reports a hit;
	// a miss is not an error.
	GetCompletion(ctx context.Context, key string) (string, bool, error)

	// SetCompletion stores a completion with TTL.
	SetCompletion(ctx context.Context, key, completion string, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// Key derives the cache key for a prompt. The model is part of the prompt
// template, so the prompt text alone identifies the request.
func Key(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
