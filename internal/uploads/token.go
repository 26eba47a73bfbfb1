// Package uploads drives the asynchronous media upload machinery: batch
// tokens for stale-result suppression, the batch progress aggregator, the
// storage path scheme, and the per-asset upload pipeline.
package uploads

import (
	"sync"

	"github.com/stagehandhq/stagehand/internal/media"
)

// Token identifies one upload batch within a registry. Tokens are compared,
// never dereferenced; a zero Token is never issued.
type Token uint64

// TokenRegistry issues one current token per media family. Starting a new
// batch for a family supersedes the prior one; continuations of the old
// batch see IsCurrent return false and drop their results. Closing the
// registry invalidates every token, which is how session teardown silences
// still-running pipelines.
type TokenRegistry struct {
	mu      sync.Mutex
	next    Token
	current map[media.Family]Token
	closed  bool
}

func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{current: make(map[media.Family]Token)}
}

// BeginBatch supersedes any prior batch of the family and returns the new
// current token. A closed registry issues tokens that are never current.
func (r *TokenRegistry) BeginBatch(family media.Family) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.current[family] = r.next
	return r.next
}

// IsCurrent reports whether tok is still the live token for the family.
// Stale continuations use this as their gate: false means no-op, not error.
func (r *TokenRegistry) IsCurrent(family media.Family, tok Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	return r.current[family] == tok && tok != 0
}

// Close invalidates all tokens permanently.
func (r *TokenRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
