package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/errors"
	"github.com/turtacn/limitgate/pkg/logger"
)

// TokenBucketStrategy implements continuous-refill token bucket admission
// against the shared counter store. The read of the current state and the
// write that consumes a token form a single atomic compare-and-swap, so
// concurrent callers on the same key can never jointly observe enough tokens
// and over-admit.
type TokenBucketStrategy struct {
	store      service.CounterStore
	logger     logger.Logger
	clock      func() time.Time
	maxRetries int
}

// NewTokenBucketStrategy creates a token bucket strategy backed by store.
func NewTokenBucketStrategy(store service.CounterStore, log logger.Logger) *TokenBucketStrategy {
	return &TokenBucketStrategy{
		store:      store,
		logger:     log.WithComponent("token_bucket"),
		clock:      time.Now,
		maxRetries: constants.DefaultCASMaxRetries,
	}
}

// Name returns the algorithm tag.
func (s *TokenBucketStrategy) Name() string {
	return string(constants.AlgorithmTokenBucket)
}

// Allow refills the bucket for the elapsed time since the last check, consumes
// one token when at least one is available, and writes the new state back with
// a compare-and-swap. A lost swap means another replica decided first; the
// check is retried against the fresh state a bounded number of times.
func (s *TokenBucketStrategy) Allow(ctx context.Context, key string, params models.LimitParams) (*models.Decision, error) {
	capacity := float64(params.Capacity)

	// State expires once a full refill from empty plus skew slack has passed.
	ttl := time.Duration(capacity/params.Rate*float64(time.Second)) + constants.CounterTTLSlack

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		raw, found, err := s.store.Read(ctx, key)
		if err != nil {
			return nil, errors.ErrStoreUnavailable(err.Error()).WithCause(err)
		}

		now := s.clock()
		state := bucketState{Tokens: capacity, LastRefillMS: now.UnixMilli()}
		var expected []byte
		if found {
			expected = raw
			decoded, decodeErr := decodeBucketState(raw)
			if decodeErr != nil {
				// Corrupt state is recovered by resetting the key to a fresh
				// full bucket; the swap below replaces the corrupt bytes.
				s.logger.Warn(ctx, "resetting corrupt token bucket state",
					logger.String("key", key),
					logger.Error(errors.ErrAlgorithmInternal(key, decodeErr.Error())),
				)
			} else {
				state = decoded
			}
		}

		elapsed := time.Duration(now.UnixMilli()-state.LastRefillMS) * time.Millisecond
		if elapsed < 0 {
			elapsed = 0 // bounded clock skew between replicas
		}
		tokens := math.Min(capacity, state.Tokens+elapsed.Seconds()*params.Rate)

		allowed := tokens >= 1
		after := tokens
		if allowed {
			after = tokens - 1
		}

		next := encodeBucketState(bucketState{Tokens: after, LastRefillMS: now.UnixMilli()})
		swapped, err := s.store.CompareAndSwap(ctx, key, expected, next, ttl)
		if err != nil {
			return nil, errors.ErrStoreUnavailable(err.Error()).WithCause(err)
		}
		if !swapped {
			continue // another caller won the swap, re-read and retry
		}

		return s.buildDecision(allowed, after, params, now), nil
	}

	return nil, errors.ErrStoreUnavailable(
		fmt.Sprintf("token bucket compare-and-swap exhausted %d retries for key %q", s.maxRetries, key))
}

// Reset drops the bucket state; the next check starts from a full bucket.
func (s *TokenBucketStrategy) Reset(ctx context.Context, key string, _ models.LimitParams) error {
	return s.store.Delete(ctx, key)
}

func (s *TokenBucketStrategy) buildDecision(allowed bool, tokensAfter float64, params models.LimitParams, now time.Time) *models.Decision {
	remaining := int64(math.Floor(tokensAfter))
	if remaining < 0 {
		remaining = 0
	}

	// Time until one whole token is available again.
	resetAt := now
	if deficit := 1 - tokensAfter; deficit > 0 {
		resetAt = now.Add(time.Duration(deficit / params.Rate * float64(time.Second)))
	}

	used := params.Capacity - remaining
	if allowed {
		return &models.Decision{
			Allowed:      true,
			Strategy:     s.Name(),
			Limit:        params.Capacity,
			Remaining:    remaining,
			RequestCount: used,
			ResetAt:      resetAt,
		}
	}
	return models.RejectedDecision("", s.Name(), params.Capacity, remaining, used, resetAt)
}
