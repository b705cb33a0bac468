// Package cache holds the local deny cache: a deliberately approximate,
// short-lived memo of recent rejections. Only denials are ever cached — an
// admission must always reach the shared store, otherwise replicas would
// over-admit against counters they never incremented.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/pkg/constants"
)

// DenyCache memoizes rejection decisions per counter key for a short TTL. A
// hit serves the stored rejection without a store round trip; the trade-off is
// that a counter reset mid-TTL keeps rejecting for at most the TTL.
type DenyCache struct {
	entries *gocache.Cache
	ttl     time.Duration
}

// NewDenyCache creates the cache. A non-positive ttl falls back to the
// default.
func NewDenyCache(ttl time.Duration) *DenyCache {
	if ttl <= 0 {
		ttl = constants.DefaultDenyCacheTTL
	}
	return &DenyCache{
		entries: gocache.New(ttl, 10*ttl),
		ttl:     ttl,
	}
}

// Get returns the cached rejection for key, if one is still live.
func (c *DenyCache) Get(key string) (*models.Decision, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	cached := v.(models.Decision)
	cached.Cached = true
	return &cached, true
}

// Put stores a rejection. Allowed decisions are ignored.
func (c *DenyCache) Put(key string, decision models.Decision) {
	if decision.Allowed {
		return
	}
	decision.Cached = false
	c.entries.Set(key, decision, c.ttl)
}

// Invalidate drops the cached rejection for key, if any. Used when a counter
// is administratively reset.
func (c *DenyCache) Invalidate(key string) {
	c.entries.Delete(key)
}
