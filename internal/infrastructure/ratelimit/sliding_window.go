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

// SlidingWindowStrategy approximates a trailing-interval count from two
// adjacent fixed sub-windows. The previous sub-window contributes its count
// weighted by how much of it still overlaps the trailing interval:
//
//	estimated = current + previous * (1 - elapsedFraction)
//
// The estimate can overcount by at most previousCount right after a sub-window
// roll, so admissions at any instant are bounded by capacity + previousCount.
// That bound is a documented property of the bucketed approximation and must
// not be silently tightened.
type SlidingWindowStrategy struct {
	store      service.CounterStore
	logger     logger.Logger
	clock      func() time.Time
	maxRetries int
}

// NewSlidingWindowStrategy creates a sliding window strategy backed by store.
func NewSlidingWindowStrategy(store service.CounterStore, log logger.Logger) *SlidingWindowStrategy {
	return &SlidingWindowStrategy{
		store:      store,
		logger:     log.WithComponent("sliding_window"),
		clock:      time.Now,
		maxRetries: constants.DefaultCASMaxRetries,
	}
}

// Name returns the algorithm tag.
func (s *SlidingWindowStrategy) Name() string {
	return string(constants.AlgorithmSlidingWindow)
}

// Allow rolls the sub-windows forward when the current one has ended,
// estimates the trailing count, and admits while the estimate stays under
// capacity. The roll and the increment are attributed to the same atomic
// compare-and-swap so concurrent rolls cannot lose updates.
func (s *SlidingWindowStrategy) Allow(ctx context.Context, key string, params models.LimitParams) (*models.Decision, error) {
	windowMS := params.WindowSize.Milliseconds()
	ttl := 2*params.WindowSize + constants.CounterTTLSlack

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		raw, found, err := s.store.Read(ctx, key)
		if err != nil {
			return nil, errors.ErrStoreUnavailable(err.Error()).WithCause(err)
		}

		now := s.clock()
		bucketStartMS := (now.UnixMilli() / windowMS) * windowMS

		state := windowState{BucketStartMS: bucketStartMS}
		var expected []byte
		if found {
			expected = raw
			decoded, decodeErr := decodeWindowState(raw)
			if decodeErr != nil {
				s.logger.Warn(ctx, "resetting corrupt sliding window state",
					logger.String("key", key),
					logger.Error(errors.ErrAlgorithmInternal(key, decodeErr.Error())),
				)
			} else {
				state = decoded
			}
		}

		// Roll into the current sub-window. An adjacent roll carries the old
		// current count into previous; a larger gap means both are stale.
		if state.BucketStartMS != bucketStartMS {
			if bucketStartMS-state.BucketStartMS == windowMS {
				state.PreviousCount = state.CurrentCount
			} else {
				state.PreviousCount = 0
			}
			state.CurrentCount = 0
			state.BucketStartMS = bucketStartMS
		}

		elapsedFraction := float64(now.UnixMilli()-bucketStartMS) / float64(windowMS)
		estimated := float64(state.CurrentCount) + float64(state.PreviousCount)*(1-elapsedFraction)

		allowed := estimated < float64(params.Capacity)
		if allowed {
			state.CurrentCount++
			estimated++
		}

		swapped, err := s.store.CompareAndSwap(ctx, key, expected, encodeWindowState(state), ttl)
		if err != nil {
			return nil, errors.ErrStoreUnavailable(err.Error()).WithCause(err)
		}
		if !swapped {
			continue
		}

		remaining := int64(math.Floor(float64(params.Capacity) - estimated))
		if remaining < 0 {
			remaining = 0
		}
		resetAt := time.UnixMilli(bucketStartMS + windowMS)
		count := state.CurrentCount + state.PreviousCount

		if !allowed {
			return models.RejectedDecision("", s.Name(), params.Capacity, remaining, count, resetAt), nil
		}
		return &models.Decision{
			Allowed:      true,
			Strategy:     s.Name(),
			Limit:        params.Capacity,
			Remaining:    remaining,
			RequestCount: count,
			ResetAt:      resetAt,
		}, nil
	}

	return nil, errors.ErrStoreUnavailable(
		fmt.Sprintf("sliding window compare-and-swap exhausted %d retries for key %q", s.maxRetries, key))
}

// Reset drops both sub-window counts at once.
func (s *SlidingWindowStrategy) Reset(ctx context.Context, key string, _ models.LimitParams) error {
	return s.store.Delete(ctx, key)
}
