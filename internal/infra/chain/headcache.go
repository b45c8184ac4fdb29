package chain

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/blockledger/internal/core/domain"
)

// HeadCache caches the chain head so frequent readers (status endpoints)
// don't each cost a node request. Block is passed through uncached.
//
// The catch-up engine must not read through a HeadCache: it needs the
// current head on every tick.
type HeadCache struct {
	node Node
	ttl  time.Duration

	mu       sync.RWMutex
	cached   domain.Block
	cachedAt time.Time
}

// NewHeadCache creates a new head cache with the given TTL.
func NewHeadCache(node Node, ttl time.Duration) *HeadCache {
	return &HeadCache{
		node: node,
		ttl:  ttl,
	}
}

// Head returns the cached chain head if within TTL, otherwise fetches fresh.
// Errors are not cached.
func (c *HeadCache) Head(ctx context.Context) (domain.Block, error) {
	c.mu.RLock()
	if time.Since(c.cachedAt) < c.ttl && c.cached.Height > 0 {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	head, err := c.node.Head(ctx)
	if err != nil {
		return domain.Block{}, err
	}

	c.mu.Lock()
	c.cached = head
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return head, nil
}

// Block implements Node.
func (c *HeadCache) Block(ctx context.Context, height uint64) (domain.Block, error) {
	return c.node.Block(ctx, height)
}

// Invalidate clears the cache, forcing the next call to fetch fresh data.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
