package prcache

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const indexFile = "index.json"

// entry is the index record for one key. The JSON field names are the
// on-disk index format.
type entry struct {
	StoragePath string `json:"storagePath"`
	SizeBytes   int64  `json:"sizeBytes"`
	CreatedAt   int64  `json:"createdAt"` // epoch ms
	TTLMs       int64  `json:"ttlMs"`     // 0 = no expiry

	seq uint64 // write order, breaks createdAt ties
}

// expired reports whether the entry's TTL has elapsed at now (epoch ms).
func (e *entry) expired(now int64) bool {
	return e.TTLMs > 0 && now-e.CreatedAt > e.TTLMs
}

// ttlMillis converts a TTL to whole milliseconds, rounding sub-millisecond
// positive TTLs up so they still expire.
func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	ms := ttl.Milliseconds()
	if ms == 0 {
		return 1
	}
	return ms
}

func (c *Cache[V]) indexPath() string {
	return filepath.Join(c.dir, indexFile)
}

// loadIndex reads index.json. A missing or corrupt file leaves the index
// empty; a corrupt file stays on disk until the next save replaces it.
func (c *Cache[V]) loadIndex() {
	c.index = make(map[string]*entry)

	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warn("failed to read cache index, starting empty", "error", err, "path", c.indexPath())
		}
		return
	}

	var idx map[string]*entry
	if err := json.Unmarshal(data, &idx); err != nil {
		c.log.Warn("corrupt cache index, starting empty", "error", err, "path", c.indexPath())
		return
	}

	for k, e := range idx {
		if k == "" || e == nil || e.StoragePath == "" {
			continue
		}
		c.index[k] = e
	}

	// Reconstruct write order from createdAt; key order breaks ties.
	for _, k := range c.keysLocked() {
		c.seq++
		c.index[k].seq = c.seq
	}

	c.log.Debug("loaded cache index", "entries", len(c.index), "path", c.indexPath())
}

// saveLocked rewrites index.json. Caller holds c.mu.
func (c *Cache[V]) saveLocked() error {
	total := c.totalLocked()
	c.metrics.CacheSize(total, len(c.index))

	data, err := json.Marshal(c.index)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	fn := c.indexPath()
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		c.metrics.WriteFailed()
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		c.metrics.WriteFailed()
		rmErr := os.Remove(tmp)
		return errors.Join(fmt.Errorf("rename index: %w", err), rmErr)
	}
	return nil
}

// persistLocked saves the index, logging instead of returning failure.
func (c *Cache[V]) persistLocked() {
	if err := c.saveLocked(); err != nil {
		c.log.Warn("failed to persist cache index", "error", err, "path", c.indexPath())
	}
}

// keysLocked returns keys oldest-write first.
func (c *Cache[V]) keysLocked() []string {
	keys := make([]string, 0, len(c.index))
	for k := range c.index {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ea, eb := c.index[a], c.index[b]
		return cmp.Or(
			cmp.Compare(ea.CreatedAt, eb.CreatedAt),
			cmp.Compare(ea.seq, eb.seq),
			cmp.Compare(a, b),
		)
	})
	return keys
}

func (c *Cache[V]) totalLocked() int64 {
	var total int64
	for _, e := range c.index {
		total += e.SizeBytes
	}
	return total
}
