package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"mcq-agents/internal/pipeline"
)

// Checkpoint accumulates answered results keyed by qid so an interrupted
// batch resumes where it stopped. Safe for concurrent Add.
type Checkpoint struct {
	path string

	mu      sync.Mutex
	results map[string]pipeline.Result
}

// LoadCheckpoint reads a checkpoint file. A missing file yields an empty
// checkpoint; a corrupt one is an error so a half-written file is not
// silently discarded.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	cp := &Checkpoint{path: path, results: make(map[string]pipeline.Result)}
	if path == "" {
		return cp, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cp.results); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}
	return cp, nil
}

// Results returns a copy of the checkpointed results keyed by qid.
func (c *Checkpoint) Results() map[string]pipeline.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]pipeline.Result, len(c.results))
	for qid, r := range c.results {
		out[qid] = r
	}
	return out
}

// Len reports how many results the checkpoint holds.
func (c *Checkpoint) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Add records a result. It does not persist; call Save.
func (c *Checkpoint) Add(r pipeline.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.QID] = r
}

// Save writes the checkpoint atomically via a temp file rename, so an
// interrupt mid-save leaves the previous checkpoint intact.
func (c *Checkpoint) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	data, err := json.MarshalIndent(c.results, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}
