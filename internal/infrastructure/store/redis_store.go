// Package store implements the shared counter store on Redis. Linearizability
// of the per-key operations comes from Redis executing each Lua script
// atomically; the strategies build their read-modify-write cycles on top of
// that guarantee.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

var _ service.CounterStore = (*RedisCounterStore)(nil)

// incrementScript increments the counter and stamps the TTL only on creation,
// so the window a counter belongs to keeps its original expiry.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// casScript swaps the value only when the stored bytes equal the expected
// bytes. An empty expected argument means "create only if absent"; the encoded
// states are JSON objects and can never be the empty string, so the sentinel
// is unambiguous.
var casScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if ARGV[1] == '' then
	if current then
		return 0
	end
elseif current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// LatencyObserver receives the duration of each store round trip.
type LatencyObserver interface {
	ObserveStore(operation string, d time.Duration)
}

// RedisCounterStore is the Redis-backed CounterStore. Every round trip is
// bounded by opTimeout so a slow store degrades into a fallback decision
// instead of stalling the request path.
type RedisCounterStore struct {
	client    redis.UniversalClient
	logger    logger.Logger
	opTimeout time.Duration
	observer  LatencyObserver
}

// NewRedisCounterStore wraps client as a CounterStore. A non-positive
// opTimeout falls back to the default per-operation bound.
func NewRedisCounterStore(client redis.UniversalClient, opTimeout time.Duration, log logger.Logger) *RedisCounterStore {
	if opTimeout <= 0 {
		opTimeout = constants.DefaultStoreTimeout
	}
	return &RedisCounterStore{
		client:    client,
		logger:    log.WithComponent("redis_counter_store"),
		opTimeout: opTimeout,
	}
}

// WithObserver enables round trip latency instrumentation.
func (s *RedisCounterStore) WithObserver(obs LatencyObserver) *RedisCounterStore {
	s.observer = obs
	return s
}

func (s *RedisCounterStore) observe(operation string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveStore(operation, time.Since(start))
	}
}

// IncrementAndGet atomically increments key and returns the new value. The TTL
// applies only when the increment creates the key.
func (s *RedisCounterStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	defer s.observe("increment", time.Now())

	count, err := incrementScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		s.logger.Error(ctx, "increment failed", err, logger.String("key", key))
		return 0, err
	}
	return count, nil
}

// CompareAndSwap writes next at key only when the stored state equals expected.
// Nil expected requires the key to be absent. Returns false when the
// comparison loses, with no error and no write.
func (s *RedisCounterStore) CompareAndSwap(ctx context.Context, key string, expected, next []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	defer s.observe("compare_and_swap", time.Now())

	swapped, err := casScript.Run(ctx, s.client,
		[]string{key},
		string(expected), string(next), ttl.Milliseconds(),
	).Int64()
	if err != nil {
		s.logger.Error(ctx, "compare-and-swap failed", err, logger.String("key", key))
		return false, err
	}
	return swapped == 1, nil
}

// Read returns the raw state at key, reporting absence without an error.
func (s *RedisCounterStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	defer s.observe("read", time.Now())

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		s.logger.Error(ctx, "read failed", err, logger.String("key", key))
		return nil, false, err
	}
	return raw, true, nil
}

// Delete removes the counter at key. Deleting an absent key is not an error.
func (s *RedisCounterStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	defer s.observe("delete", time.Now())

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error(ctx, "delete failed", err, logger.String("key", key))
		return err
	}
	return nil
}

// Ping reports store connectivity for health checks.
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
