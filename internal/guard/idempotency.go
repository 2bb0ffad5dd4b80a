package guard

import (
	"context"
	"sync"
)

// IdempotencyGuard claims keys once per process. The rebate service claims a
// transaction id before deciding it so two sessions holding the same pending
// rebate cannot both decide it.
type IdempotencyGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewIdempotencyGuard creates a new in-memory idempotency guard.
func NewIdempotencyGuard() *IdempotencyGuard {
	return &IdempotencyGuard{
		seen: make(map[string]bool),
	}
}

// Check claims key and reports whether it was still free.
func (ig *IdempotencyGuard) Check(_ context.Context, key string) Result {
	if key == "" {
		return Result{Allowed: true}
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	if ig.seen[key] {
		return Result{
			Allowed: false,
			Reason:  "already decided: " + key,
			Guard:   "idempotency",
		}
	}

	ig.seen[key] = true
	return Result{Allowed: true}
}

// Remove releases a claim that did not lead to a decision.
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	delete(ig.seen, key)
}
