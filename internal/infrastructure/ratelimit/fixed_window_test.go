package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

func newFixedWindowUnderTest(t *testing.T, start time.Time) (*FixedWindowStrategy, func(time.Duration)) {
	t.Helper()
	s := NewFixedWindowStrategy(newTestStore(t), logger.NewNoopLogger())
	clock, advance := fixedClock(start)
	s.clock = clock
	return s, advance
}

func TestFixedWindow_CapacityWithinWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newFixedWindowUnderTest(t, start)

	params := models.LimitParams{
		Capacity:   3,
		WindowSize: time.Minute,
		Algorithm:  constants.AlgorithmFixedWindow,
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := s.Allow(ctx, "fw-key", params)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, int64(i+1), decision.RequestCount)
		assert.Equal(t, int64(3-i-1), decision.Remaining)
	}

	decision, err := s.Allow(ctx, "fw-key", params)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, start.Add(time.Minute), decision.ResetAt)
}

func TestFixedWindow_RejectedRequestsStillCount(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newFixedWindowUnderTest(t, start)

	params := models.LimitParams{Capacity: 1, WindowSize: time.Minute, Algorithm: constants.AlgorithmFixedWindow}
	ctx := context.Background()

	_, err := s.Allow(ctx, "count-key", params)
	require.NoError(t, err)

	// Each rejected check increments the window counter anyway.
	for i := 0; i < 3; i++ {
		decision, err := s.Allow(ctx, "count-key", params)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, int64(i+2), decision.RequestCount)
	}
}

func TestFixedWindow_NewWindowResetsCounter(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, advance := newFixedWindowUnderTest(t, start)

	params := models.LimitParams{Capacity: 2, WindowSize: time.Minute, Algorithm: constants.AlgorithmFixedWindow}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.Allow(ctx, "reset-key", params)
		require.NoError(t, err)
	}
	rejected, err := s.Allow(ctx, "reset-key", params)
	require.NoError(t, err)
	require.False(t, rejected.Allowed)

	advance(time.Minute)

	decision, err := s.Allow(ctx, "reset-key", params)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), decision.RequestCount)
}

// A burst straddling the boundary can be admitted up to twice the capacity;
// that is the documented cost of independent windows.
func TestFixedWindow_BoundaryAdmitsUpToTwiceCapacity(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 59, 0, time.UTC)
	s, advance := newFixedWindowUnderTest(t, start)

	params := models.LimitParams{Capacity: 2, WindowSize: time.Minute, Algorithm: constants.AlgorithmFixedWindow}
	ctx := context.Background()

	admitted := 0
	for i := 0; i < 2; i++ {
		decision, err := s.Allow(ctx, "boundary-key", params)
		require.NoError(t, err)
		if decision.Allowed {
			admitted++
		}
	}

	advance(time.Second) // crosses into the next window

	for i := 0; i < 2; i++ {
		decision, err := s.Allow(ctx, "boundary-key", params)
		require.NoError(t, err)
		if decision.Allowed {
			admitted++
		}
	}

	assert.Equal(t, 4, admitted)
}
