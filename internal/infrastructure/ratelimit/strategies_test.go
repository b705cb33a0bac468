package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/internal/infrastructure/store"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

// newTestStore backs a CounterStore with miniredis for strategy tests.
func newTestStore(t *testing.T) service.CounterStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return store.NewRedisCounterStore(client, time.Second, logger.NewNoopLogger())
}

// fixedClock returns a controllable clock starting at a stable instant.
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now },
		func(d time.Duration) { now = now.Add(d) }
}

func TestNewStrategyTable_CoversAllAlgorithms(t *testing.T) {
	table := NewStrategyTable(newTestStore(t), logger.NewNoopLogger())

	require.Len(t, table, 3)
	for _, algorithm := range []constants.AlgorithmType{
		constants.AlgorithmTokenBucket,
		constants.AlgorithmFixedWindow,
		constants.AlgorithmSlidingWindow,
	} {
		strategy, ok := table[algorithm]
		require.True(t, ok, "missing strategy for %s", algorithm)
		assert.Equal(t, string(algorithm), strategy.Name())
	}
}
