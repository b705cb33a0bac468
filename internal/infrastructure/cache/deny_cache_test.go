package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/infrastructure/cache"
)

func rejection() models.Decision {
	return *models.RejectedDecision("per-ip", "fixed_window", 10, 0, 11, time.Now().Add(time.Minute))
}

func TestDenyCache_ServesStoredRejections(t *testing.T) {
	c := cache.NewDenyCache(time.Minute)

	_, ok := c.Get("key")
	require.False(t, ok)

	c.Put("key", rejection())
	cached, ok := c.Get("key")
	require.True(t, ok)
	assert.False(t, cached.Allowed)
	assert.True(t, cached.Cached, "served entries are marked as cache hits")
}

func TestDenyCache_NeverCachesAdmissions(t *testing.T) {
	c := cache.NewDenyCache(time.Minute)

	allowed := rejection()
	allowed.Allowed = true
	c.Put("key", allowed)

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestDenyCache_InvalidateDropsEntry(t *testing.T) {
	c := cache.NewDenyCache(time.Minute)

	c.Put("key", rejection())
	c.Invalidate("key")

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestDenyCache_EntriesExpire(t *testing.T) {
	c := cache.NewDenyCache(20 * time.Millisecond)

	c.Put("key", rejection())
	time.Sleep(40 * time.Millisecond)

	_, ok := c.Get("key")
	assert.False(t, ok)
}
