package prcache

import (
	"context"
	"fmt"

	"github.com/codeGROOVE-dev/prcache/internal/metrics"
	"github.com/codeGROOVE-dev/prcache/pkg/persist"
)

// sweepLocked removes every entry older than maxAge, whatever its TTL.
func (c *Cache[V]) sweepLocked(ctx context.Context, now int64) int {
	maxAge := c.maxAge.Milliseconds()
	n := 0
	for k, e := range c.index {
		if now-e.CreatedAt > maxAge {
			c.removeLocked(ctx, k)
			n++
		}
	}
	if n > 0 {
		c.log.Debug("swept aged cache entries", "count", n)
	}
	c.metrics.Evicted(metrics.ReasonAge, n)
	return n
}

// enforceSizeLocked evicts oldest-written entries until the total size fits.
// Reads do not refresh an entry's position: eviction is by write recency.
func (c *Cache[V]) enforceSizeLocked(ctx context.Context) int {
	total := c.totalLocked()
	if total <= c.maxSize {
		return 0
	}

	n := 0
	for _, k := range c.keysLocked() {
		if total <= c.maxSize {
			break
		}
		total -= c.index[k].SizeBytes
		c.removeLocked(ctx, k)
		n++
	}

	c.log.Debug("evicted cache entries over size limit", "count", n, "total_bytes", total, "max_bytes", c.maxSize)
	c.metrics.Evicted(metrics.ReasonSize, n)
	return n
}

// Prune deletes stored payloads that no index entry references, such as
// leftovers from an interrupted write or from an index that failed to load.
// Stores that cannot list their payloads are left alone.
func (c *Cache[V]) Prune(ctx context.Context) (int, error) {
	lister, ok := c.store.(persist.Lister)
	if !ok {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	locs, err := lister.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list payloads: %w", err)
	}

	live := make(map[string]bool, len(c.index))
	for _, e := range c.index {
		live[e.StoragePath] = true
	}

	n := 0
	for _, loc := range locs {
		if live[loc] {
			continue
		}
		if err := c.store.Delete(ctx, loc); err != nil {
			c.log.Warn("failed to remove orphaned payload", "error", err, "location", loc)
			continue
		}
		n++
	}

	if n > 0 {
		c.log.Info("pruned orphaned cache payloads", "count", n, "dir", c.dir)
	}
	c.metrics.Evicted(metrics.ReasonOrphan, n)
	return n, nil
}
