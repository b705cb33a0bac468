package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/limitgate/internal/infrastructure/store"
	"github.com/turtacn/limitgate/pkg/logger"
)

func newStore(t *testing.T) (*store.RedisCounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.NewRedisCounterStore(client, time.Second, logger.NewNoopLogger()), mr
}

func TestIncrementAndGet_SequentialCounts(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, err := s.IncrementAndGet(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestIncrementAndGet_TTLSetOnCreationOnly(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	_, err := s.IncrementAndGet(ctx, "ttl-counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("ttl-counter"))

	mr.FastForward(30 * time.Second)
	_, err = s.IncrementAndGet(ctx, "ttl-counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("ttl-counter"), "later increments must not refresh the TTL")

	mr.FastForward(31 * time.Second)
	count, err := s.IncrementAndGet(ctx, "ttl-counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired counter restarts from zero")
}

func TestCompareAndSwap_CreateIfAbsent(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	swapped, err := s.CompareAndSwap(ctx, "cas-key", nil, []byte(`{"v":1}`), time.Minute)
	require.NoError(t, err)
	assert.True(t, swapped)

	// A second create-if-absent must lose: the key now exists.
	swapped, err = s.CompareAndSwap(ctx, "cas-key", nil, []byte(`{"v":2}`), time.Minute)
	require.NoError(t, err)
	assert.False(t, swapped)

	raw, ok, err := s.Read(ctx, "cas-key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"v":1}`, string(raw))
}

func TestCompareAndSwap_SwapsOnlyOnMatch(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.CompareAndSwap(ctx, "cas-key", nil, []byte(`{"v":1}`), time.Minute)
	require.NoError(t, err)

	swapped, err := s.CompareAndSwap(ctx, "cas-key", []byte(`{"v":0}`), []byte(`{"v":9}`), time.Minute)
	require.NoError(t, err)
	assert.False(t, swapped, "stale expected value must lose the swap")

	swapped, err = s.CompareAndSwap(ctx, "cas-key", []byte(`{"v":1}`), []byte(`{"v":2}`), time.Minute)
	require.NoError(t, err)
	assert.True(t, swapped)

	raw, ok, err := s.Read(ctx, "cas-key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"v":2}`, string(raw))
}

func TestRead_AbsentKey(t *testing.T) {
	s, _ := newStore(t)

	raw, ok, err := s.Read(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, raw)
}

func TestDelete_RemovesCounter(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.IncrementAndGet(ctx, "doomed", time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "doomed"))
	require.NoError(t, s.Delete(ctx, "doomed"), "deleting an absent key is not an error")

	_, ok, err := s.Read(ctx, "doomed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPing_ReportsStoreOutage(t *testing.T) {
	s, mr := newStore(t)

	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
