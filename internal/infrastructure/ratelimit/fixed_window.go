package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
	"github.com/turtacn/limitgate/pkg/errors"
)

// FixedWindowStrategy counts requests within non-overlapping, clock-aligned
// windows via a single atomic increment per check.
//
// Two properties are intentional and documented, not bugs:
//   - A rejected request still counts toward the window: the increment has
//     already happened when the ceiling check runs.
//   - Windows are independent and unsynchronized with request timing, so up to
//     2*capacity requests can be admitted across one window boundary (the tail
//     of one window plus the head of the next).
type FixedWindowStrategy struct {
	store  service.CounterStore
	logger logger.Logger
	clock  func() time.Time
}

// NewFixedWindowStrategy creates a fixed window strategy backed by store.
func NewFixedWindowStrategy(store service.CounterStore, log logger.Logger) *FixedWindowStrategy {
	return &FixedWindowStrategy{
		store:  store,
		logger: log.WithComponent("fixed_window"),
		clock:  time.Now,
	}
}

// Name returns the algorithm tag.
func (s *FixedWindowStrategy) Name() string {
	return string(constants.AlgorithmFixedWindow)
}

// Allow increments the counter of the current aligned window and admits the
// request while the post-increment count stays within capacity.
func (s *FixedWindowStrategy) Allow(ctx context.Context, key string, params models.LimitParams) (*models.Decision, error) {
	now := s.clock()
	windowStart := now.Truncate(params.WindowSize)

	// One counter per aligned window; expired windows vanish via TTL.
	windowKey := fmt.Sprintf("%s%c%d", key, keySeparator, windowStart.UnixMilli())

	count, err := s.store.IncrementAndGet(ctx, windowKey, 2*params.WindowSize)
	if err != nil {
		return nil, errors.ErrStoreUnavailable(err.Error()).WithCause(err)
	}

	resetAt := windowStart.Add(params.WindowSize)
	remaining := params.Capacity - count
	if remaining < 0 {
		remaining = 0
	}

	if count > params.Capacity {
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

// Reset clears the counter of the window currently in effect. Past windows
// age out via TTL on their own.
func (s *FixedWindowStrategy) Reset(ctx context.Context, key string, params models.LimitParams) error {
	windowStart := s.clock().Truncate(params.WindowSize)
	windowKey := fmt.Sprintf("%s%c%d", key, keySeparator, windowStart.UnixMilli())
	return s.store.Delete(ctx, windowKey)
}
