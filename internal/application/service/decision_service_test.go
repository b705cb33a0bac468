package service_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appservice "github.com/turtacn/limitgate/internal/application/service"
	"github.com/turtacn/limitgate/internal/domain/models"
	domainservice "github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/internal/infrastructure/cache"
	"github.com/turtacn/limitgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/limitgate/internal/infrastructure/registry"
	"github.com/turtacn/limitgate/internal/infrastructure/store"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/errors"
	"github.com/turtacn/limitgate/pkg/logger"
)

// failingStore simulates an unreachable counter store.
type failingStore struct{}

func (failingStore) IncrementAndGet(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.ErrStoreUnavailable("connection refused")
}
func (failingStore) CompareAndSwap(context.Context, string, []byte, []byte, time.Duration) (bool, error) {
	return false, errors.ErrStoreUnavailable("connection refused")
}
func (failingStore) Read(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.ErrStoreUnavailable("connection refused")
}
func (failingStore) Delete(context.Context, string) error {
	return errors.ErrStoreUnavailable("connection refused")
}
func (failingStore) Ping(context.Context) error {
	return errors.ErrStoreUnavailable("connection refused")
}

func newRedisStore(t *testing.T) domainservice.CounterStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.NewRedisCounterStore(client, time.Second, logger.NewNoopLogger())
}

func newDispatcher(t *testing.T, st domainservice.CounterStore, fallback constants.FallbackPolicy, rules ...models.LimitRule) *appservice.Dispatcher {
	t.Helper()
	reg, err := registry.NewStaticRegistry(rules)
	require.NoError(t, err)
	return appservice.NewDispatcher(
		reg,
		ratelimit.NewStrategyTable(st, logger.NewNoopLogger()),
		ratelimit.NewKeyBuilder("test"),
		fallback,
		logger.NewNoopLogger(),
	)
}

func tokenBucketRule(id string, capacity int64, dims ...string) models.LimitRule {
	return models.LimitRule{
		ID:         id,
		Dimensions: dims,
		Params: models.LimitParams{
			Rate:      0.001, // effectively no refill during a test run
			Capacity:  capacity,
			Algorithm: constants.AlgorithmTokenBucket,
		},
	}
}

func TestCheck_NoRulesAdmitsUnconditionally(t *testing.T) {
	d := newDispatcher(t, newRedisStore(t), constants.FallbackFailOpen)

	decision := d.Check(context.Background(), map[string]string{"client_ip": "10.0.0.1"})
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.RuleID)
	assert.Empty(t, decision.Strategy)
}

func TestCheck_InapplicableRuleAdmits(t *testing.T) {
	// The only rule is tenant-scoped; a request without a tenant matches nothing.
	d := newDispatcher(t, newRedisStore(t), constants.FallbackFailOpen,
		tokenBucketRule("per-tenant", 1, constants.DimensionTenant))

	decision := d.Check(context.Background(), map[string]string{"client_ip": "10.0.0.1"})
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.RuleID)
}

func TestCheck_FirstRejectionWins(t *testing.T) {
	st := newRedisStore(t)
	tight := tokenBucketRule("tight", 1, constants.DimensionClientIP)
	tight.Priority = 1
	loose := tokenBucketRule("loose", 100, constants.DimensionClientIP)
	loose.Priority = 2

	d := newDispatcher(t, st, constants.FallbackFailOpen, tight, loose)
	dims := map[string]string{constants.DimensionClientIP: "10.0.0.1"}

	first := d.Check(context.Background(), dims)
	require.True(t, first.Allowed)

	second := d.Check(context.Background(), dims)
	require.False(t, second.Allowed)
	assert.Equal(t, "tight", second.RuleID)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	// The loose rule's counter saw only the admitted request: the rejection
	// short-circuited before reaching it.
	third := d.Check(context.Background(), dims)
	require.False(t, third.Allowed)
	assert.Equal(t, "tight", third.RuleID)
}

func TestCheck_AllowedCarriesTightestAccounting(t *testing.T) {
	st := newRedisStore(t)
	d := newDispatcher(t, st, constants.FallbackFailOpen,
		tokenBucketRule("narrow", 3, constants.DimensionClientIP),
		tokenBucketRule("wide", 100, constants.DimensionClientIP),
	)
	dims := map[string]string{constants.DimensionClientIP: "10.0.0.1"}

	decision := d.Check(context.Background(), dims)
	require.True(t, decision.Allowed)
	assert.Equal(t, "narrow", decision.RuleID)
	assert.Equal(t, int64(3), decision.Limit)
	assert.Equal(t, int64(2), decision.Remaining)
}

func TestCheck_FailOpenAdmitsDegraded(t *testing.T) {
	d := newDispatcher(t, failingStore{}, constants.FallbackFailOpen,
		tokenBucketRule("r", 1, constants.DimensionClientIP))

	decision := d.Check(context.Background(), map[string]string{constants.DimensionClientIP: "10.0.0.1"})
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Degraded)
}

func TestCheck_FailClosedRejectsDistinguishably(t *testing.T) {
	d := newDispatcher(t, failingStore{}, constants.FallbackFailClosed,
		tokenBucketRule("r", 1, constants.DimensionClientIP))

	decision := d.Check(context.Background(), map[string]string{constants.DimensionClientIP: "10.0.0.1"})
	assert.False(t, decision.Allowed)
	assert.True(t, decision.Degraded)
	assert.Equal(t, http.StatusServiceUnavailable, decision.StatusCode,
		"a degraded rejection must not masquerade as a rate limit")
}

func TestCheck_DenyCacheServesRepeatRejections(t *testing.T) {
	st := newRedisStore(t)
	d := newDispatcher(t, st, constants.FallbackFailOpen,
		tokenBucketRule("cached", 1, constants.DimensionClientIP)).
		WithDenyCache(cache.NewDenyCache(time.Minute))
	dims := map[string]string{constants.DimensionClientIP: "10.0.0.1"}

	first := d.Check(context.Background(), dims)
	require.True(t, first.Allowed)

	rejected := d.Check(context.Background(), dims)
	require.False(t, rejected.Allowed)
	assert.False(t, rejected.Cached)

	repeat := d.Check(context.Background(), dims)
	require.False(t, repeat.Allowed)
	assert.True(t, repeat.Cached)
}

// Concurrent checks against one counter must admit exactly the capacity:
// the atomic compare-and-swap forbids joint over-admission.
func TestCheck_ConcurrentAdmissionsBoundedByCapacity(t *testing.T) {
	st := newRedisStore(t)
	capacity := int64(10)
	d := newDispatcher(t, st, constants.FallbackFailClosed,
		tokenBucketRule("concurrent", capacity, constants.DimensionClientIP))
	dims := map[string]string{constants.DimensionClientIP: "10.0.0.1"}

	const workers = 30
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A degraded decision means the bounded swap retries were exhausted
			// by contention; no state was written, so the check can simply be
			// repeated until it resolves against the store.
			for {
				decision := d.Check(context.Background(), dims)
				if !decision.Degraded {
					results <- decision.Allowed
					return
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for allowed := range results {
		if allowed {
			admitted++
		}
	}
	assert.Equal(t, int(capacity), admitted)
}
