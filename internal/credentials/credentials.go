// Package credentials manages the rotating pool of API credential bundles
// used against the LLM gateway.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNoCredentials is returned when every credential in the pool has been
// marked invalid. This is a batch-fatal condition for callers.
var ErrNoCredentials = errors.New("no valid credentials available")

// Credential is one vendor credential bundle.
type Credential struct {
	Name          string
	Authorization string // bearer token, "Bearer " prefix already stripped
	TokenID       string
	TokenKey      string
}

type record struct {
	Name          string `json:"llmApiName"`
	Authorization string `json:"authorization"`
	TokenID       string `json:"tokenId"`
	TokenKey      string `json:"tokenKey"`
}

// Load reads the vendor's credential file: a JSON list of records with
// llmApiName, authorization, tokenId and tokenKey fields.
func Load(path string) ([]Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode credentials file: %w", err)
	}

	creds := make([]Credential, 0, len(records))
	for i, r := range records {
		auth := strings.TrimSpace(strings.TrimPrefix(r.Authorization, "Bearer "))
		if auth == "" {
			continue
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("credential-%d", i)
		}
		creds = append(creds, Credential{
			Name:          name,
			Authorization: auth,
			TokenID:       r.TokenID,
			TokenKey:      r.TokenKey,
		})
	}
	if len(creds) == 0 {
		return nil, errors.New("credentials file contains no usable entries")
	}
	return creds, nil
}

// Pool hands out credentials round-robin and tracks which have been
// rejected by the gateway. Safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	creds   []Credential
	invalid map[string]bool
	next    int
}

// NewPool builds a pool over the given credentials.
func NewPool(creds []Credential) *Pool {
	return &Pool{
		creds:   creds,
		invalid: make(map[string]bool),
	}
}

// Acquire returns the next valid credential in rotation, or
// ErrNoCredentials once every credential has been marked invalid.
func (p *Pool) Acquire() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.creds); i++ {
		cred := p.creds[p.next%len(p.creds)]
		p.next++
		if !p.invalid[cred.Name] {
			return cred, nil
		}
	}
	return Credential{}, ErrNoCredentials
}

// MarkInvalid removes a credential from rotation for the rest of the run.
func (p *Pool) MarkInvalid(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalid[name] = true
}

// Valid reports how many credentials remain in rotation.
func (p *Pool) Valid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds) - len(p.invalid)
}
