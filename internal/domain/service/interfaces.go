// Package service defines the domain interfaces of the decision engine. The
// implementations live under internal/infrastructure and are wired together in
// cmd/server.
package service

import (
	"context"
	"time"

	"github.com/turtacn/limitgate/internal/domain/models"
)

// CounterStore is the shared counter store the strategies coordinate through.
// Per-key operations must be linearizable across all concurrent callers
// cluster-wide; the strategies never rely on in-process locking for
// correctness. Every call is bounded by the implementation's configured
// timeout.
type CounterStore interface {
	// IncrementAndGet atomically increments the counter at key and returns the
	// post-increment value. The TTL is applied when the key is created.
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// CompareAndSwap atomically replaces the state at key with next if the
	// current state equals expected. A nil expected means "create only if
	// absent". Returns false without writing when the comparison fails.
	CompareAndSwap(ctx context.Context, key string, expected, next []byte, ttl time.Duration) (bool, error)

	// Read returns the raw state at key, or ok=false when the key is absent.
	Read(ctx context.Context, key string) (state []byte, ok bool, err error)

	// Delete removes the state at key. Used for administrative resets.
	Delete(ctx context.Context, key string) error

	// Ping checks store connectivity for health reporting.
	Ping(ctx context.Context) error
}

// Strategy is the common contract of the admission algorithms. Allow performs
// one admission check for the derived key under the given parameters. The
// check and the state update it implies happen as a single atomic operation
// against the CounterStore.
type Strategy interface {
	// Name returns the algorithm tag this strategy implements.
	Name() string

	// Allow decides one request for key. It never mutates params.
	Allow(ctx context.Context, key string, params models.LimitParams) (*models.Decision, error)

	// Reset clears the live counter state for key, so the next check starts
	// from a fresh default. Used for administrative resets.
	Reset(ctx context.Context, key string, params models.LimitParams) error
}

// RuleRegistry supplies the active rules, refreshed out-of-band. ActiveRules
// returns an immutable snapshot in evaluation order; registry updates swap the
// snapshot and never mutate rules observed by in-flight checks.
type RuleRegistry interface {
	ActiveRules() []models.LimitRule
}

// DecisionEngine resolves the applicable rules for a request's dimension values
// and aggregates the per-rule strategy results into one final decision. Every
// request resolves to a definitive decision; store failures are absorbed by
// the configured fallback policy.
type DecisionEngine interface {
	Check(ctx context.Context, dimensions map[string]string) *models.Decision
}

// AuditPublisher delivers decision events to the external telemetry
// collaborator. Implementations must tolerate a slow or unavailable sink
// without blocking the decision path indefinitely.
type AuditPublisher interface {
	Publish(ctx context.Context, event models.DecisionEvent) error
	Close() error
}
