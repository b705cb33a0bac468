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

func newTokenBucketUnderTest(t *testing.T, start time.Time) (*TokenBucketStrategy, func(time.Duration)) {
	t.Helper()
	s := NewTokenBucketStrategy(newTestStore(t), logger.NewNoopLogger())
	clock, advance := fixedClock(start)
	s.clock = clock
	return s, advance
}

func TestTokenBucket_BurstThenReject(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTokenBucketUnderTest(t, start)

	params := models.LimitParams{
		Rate:      5,
		Capacity:  5,
		Algorithm: constants.AlgorithmTokenBucket,
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := s.Allow(ctx, "bucket-key", params)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, int64(4-i), decision.Remaining)
		assert.Equal(t, int64(5), decision.Limit)
	}

	decision, err := s.Allow(ctx, "bucket-key", params)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(0), decision.Remaining)

	// One whole token takes 1/rate to accrue from empty.
	expectedReset := start.Add(200 * time.Millisecond)
	assert.WithinDuration(t, expectedReset, decision.ResetAt, 10*time.Millisecond)
}

func TestTokenBucket_RefillRestoresCapacity(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, advance := newTokenBucketUnderTest(t, start)

	params := models.LimitParams{Rate: 5, Capacity: 5, Algorithm: constants.AlgorithmTokenBucket}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Allow(ctx, "refill-key", params)
		require.NoError(t, err)
	}
	rejected, err := s.Allow(ctx, "refill-key", params)
	require.NoError(t, err)
	require.False(t, rejected.Allowed)

	// One second at 5/s refills 5 tokens, but the sixth check above consumed
	// nothing, so the bucket is full again.
	advance(time.Second)

	for i := 0; i < 5; i++ {
		decision, err := s.Allow(ctx, "refill-key", params)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d after refill should be admitted", i+1)
	}
}

func TestTokenBucket_RefillNeverExceedsCapacity(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, advance := newTokenBucketUnderTest(t, start)

	params := models.LimitParams{Rate: 10, Capacity: 3, Algorithm: constants.AlgorithmTokenBucket}
	ctx := context.Background()

	first, err := s.Allow(ctx, "cap-key", params)
	require.NoError(t, err)
	require.True(t, first.Allowed)

	// A long idle period refills far more than capacity; the bucket caps.
	advance(time.Hour)

	decision, err := s.Allow(ctx, "cap-key", params)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(2), decision.Remaining)
}

func TestTokenBucket_CorruptStateResetsToFreshBucket(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := newTestStore(t)
	s := NewTokenBucketStrategy(st, logger.NewNoopLogger())
	clock, _ := fixedClock(start)
	s.clock = clock

	ctx := context.Background()
	swapped, err := st.CompareAndSwap(ctx, "corrupt-key", nil, []byte("not json"), time.Minute)
	require.NoError(t, err)
	require.True(t, swapped)

	params := models.LimitParams{Rate: 1, Capacity: 2, Algorithm: constants.AlgorithmTokenBucket}
	decision, err := s.Allow(ctx, "corrupt-key", params)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), decision.Remaining, "reset bucket starts full")
}

func TestTokenBucket_IndependentKeys(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTokenBucketUnderTest(t, start)

	params := models.LimitParams{Rate: 1, Capacity: 1, Algorithm: constants.AlgorithmTokenBucket}
	ctx := context.Background()

	a, err := s.Allow(ctx, "key-a", params)
	require.NoError(t, err)
	require.True(t, a.Allowed)

	rejectedA, err := s.Allow(ctx, "key-a", params)
	require.NoError(t, err)
	assert.False(t, rejectedA.Allowed)

	b, err := s.Allow(ctx, "key-b", params)
	require.NoError(t, err)
	assert.True(t, b.Allowed, "exhausting key-a must not affect key-b")
}
