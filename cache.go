// Package prcache provides a disk-backed response cache with per-entry TTL,
// a persisted index, age-based sweeping and a global size cap.
//
// The cache is advisory: every failure is logged and surfaces as a miss or a
// no-op, so callers must always be able to recompute a value from its source.
package prcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codeGROOVE-dev/prcache/internal/metrics"
	"github.com/codeGROOVE-dev/prcache/pkg/persist"
	"github.com/codeGROOVE-dev/prcache/pkg/store/localfs"
)

// ErrInvalidKey is returned by Put for an empty key.
var ErrInvalidKey = errors.New("invalid key")

// Stats summarizes the live index.
type Stats struct {
	TotalSizeBytes int64 `json:"totalSizeBytes"`
	EntryCount     int   `json:"entryCount"`
	MaxSizeBytes   int64 `json:"maxSizeBytes"`
}

// outcome is the internal result of a lookup. Get and Has collapse
// everything but outcomeHit to a miss.
type outcome int

const (
	outcomeHit       outcome = iota
	outcomeMiss              // no index entry
	outcomeExpired           // TTL elapsed
	outcomeMissing           // payload file gone
	outcomeReadError         // payload unreadable
	outcomeCorrupt           // payload not decodable
)

func (o outcome) String() string {
	switch o {
	case outcomeHit:
		return "hit"
	case outcomeMiss:
		return "miss"
	case outcomeExpired:
		return "expired"
	case outcomeMissing:
		return "missing"
	case outcomeReadError:
		return "read_error"
	case outcomeCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o outcome) metric() string {
	switch o {
	case outcomeHit:
		return metrics.Hit
	case outcomeMiss:
		return metrics.Miss
	case outcomeExpired:
		return metrics.Expired
	default:
		return metrics.Error
	}
}

// Cache is a persistent key/value cache of JSON-serializable values.
// It is safe for concurrent use; every operation holds a single mutex, so
// operations observe each other in call order.
type Cache[V any] struct {
	mu    sync.Mutex
	index map[string]*entry
	seq   uint64

	dir     string
	store   persist.Store
	maxSize int64
	maxAge  time.Duration
	now     func() time.Time
	log     *slog.Logger
	metrics Recorder

	group singleflight.Group
}

// New opens the cache directory, creating it if needed, and loads the
// persisted index. A missing or corrupt index yields an empty cache; New only
// fails when the directory cannot be resolved or created.
//
// Example:
//
//	c, err := prcache.New[[]Pull](ctx, prcache.WithMaxSize(50<<20))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	c.Set(ctx, "repos/octo/app/pulls", pulls, 5*time.Minute)
//	pulls, ok := c.Get(ctx, "repos/octo/app/pulls")
func New[V any](_ context.Context, opts ...Option) (*Cache[V], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	dir := cfg.dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("get user cache dir: %w", err)
		}
		dir = filepath.Join(base, DefaultDirName)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	store := cfg.store
	if store == nil {
		s, err := localfs.New(dir, cfg.compressor)
		if err != nil {
			return nil, fmt.Errorf("open payload store: %w", err)
		}
		store = s
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache[V]{
		dir:     dir,
		store:   store,
		maxSize: cfg.maxSize,
		maxAge:  cfg.maxAge,
		now:     cfg.now,
		log:     logger,
		metrics: cfg.metrics,
	}
	c.loadIndex()
	c.metrics.CacheSize(c.totalLocked(), len(c.index))

	return c, nil
}

func (c *Cache[V]) nowMs() int64 {
	return c.now().UnixMilli()
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	return nil
}

// Set stores value under key. A zero TTL means the entry only leaves through
// the age sweep, size eviction or explicit removal.
// Failures are logged and otherwise invisible; use Put to observe them.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if err := c.Put(ctx, key, value, ttl); err != nil {
		c.log.Warn("cache set failed", "error", err, "key", key)
	}
}

// Put is Set with the failure reported to the caller. Every write runs the
// age sweep and then size enforcement before the index is saved.
func (c *Cache[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	loc := c.store.Location(key)
	if old, ok := c.index[key]; ok && old.StoragePath != loc {
		// Stored under a previous layout (e.g. another compressor).
		if err := c.store.Delete(ctx, old.StoragePath); err != nil {
			c.log.Warn("failed to remove stale payload", "error", err, "key", key)
		}
	}

	if err := c.store.Write(ctx, loc, data); err != nil {
		c.metrics.WriteFailed()
		return fmt.Errorf("write payload: %w", err)
	}

	now := c.nowMs()
	c.seq++
	c.index[key] = &entry{
		StoragePath: loc,
		SizeBytes:   int64(len(data)),
		CreatedAt:   now,
		TTLMs:       ttlMillis(ttl),
		seq:         c.seq,
	}

	c.sweepLocked(ctx, now)
	c.enforceSizeLocked(ctx)

	return c.saveLocked()
}

// Get returns the value stored under key. Expired entries and entries whose
// payload is missing, unreadable or undecodable are purged and reported as
// a miss.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	v, o := c.lookup(ctx, key, true)
	return v, o == outcomeHit
}

// Has applies the same TTL and payload-existence checks as Get, including the
// purge, without decoding the value.
func (c *Cache[V]) Has(ctx context.Context, key string) bool {
	_, o := c.lookup(ctx, key, false)
	return o == outcomeHit
}

func (c *Cache[V]) lookup(ctx context.Context, key string, load bool) (V, outcome) {
	v, o := c.lookupLocked(ctx, key, load)
	c.metrics.Lookup(o.metric())
	return v, o
}

func (c *Cache[V]) lookupLocked(ctx context.Context, key string, load bool) (V, outcome) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[key]
	if !ok {
		return zero, outcomeMiss
	}

	if e.expired(c.nowMs()) {
		c.purgeLocked(ctx, key, outcomeExpired, nil)
		return zero, outcomeExpired
	}

	if !load {
		exists, err := c.store.Exists(ctx, e.StoragePath)
		switch {
		case err != nil:
			c.purgeLocked(ctx, key, outcomeReadError, err)
			return zero, outcomeReadError
		case !exists:
			c.purgeLocked(ctx, key, outcomeMissing, nil)
			return zero, outcomeMissing
		}
		return zero, outcomeHit
	}

	data, err := c.store.Read(ctx, e.StoragePath)
	if err != nil {
		o := outcomeReadError
		if errors.Is(err, persist.ErrNotFound) {
			o, err = outcomeMissing, nil
		}
		c.purgeLocked(ctx, key, o, err)
		return zero, o
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		c.purgeLocked(ctx, key, outcomeCorrupt, err)
		return zero, outcomeCorrupt
	}

	return v, outcomeHit
}

// purgeLocked drops an entry found unusable during a lookup.
func (c *Cache[V]) purgeLocked(ctx context.Context, key string, why outcome, err error) {
	if err != nil {
		c.log.Warn("dropping unreadable cache entry", "error", err, "key", key, "reason", why.String())
	} else {
		c.log.Debug("dropping cache entry", "key", key, "reason", why.String())
	}
	c.removeLocked(ctx, key)
	c.persistLocked()
}

// removeLocked deletes key's payload and index record without saving the
// index. Reports whether key was present.
func (c *Cache[V]) removeLocked(ctx context.Context, key string) bool {
	e, ok := c.index[key]
	if !ok {
		return false
	}
	if err := c.store.Delete(ctx, e.StoragePath); err != nil {
		c.log.Warn("failed to remove cache payload", "error", err, "key", key)
	}
	delete(c.index, key)
	return true
}

// Remove deletes key. Removing an absent key is a no-op.
func (c *Cache[V]) Remove(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.removeLocked(ctx, key) {
		c.persistLocked()
	}
}

// Clear removes every entry and persists the empty index.
// Returns the number of entries removed. The index is always emptied, even
// when ctx is already done.
func (c *Cache[V]) Clear(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	n := 0
	for k := range c.index {
		c.removeLocked(ctx, k)
		n++
	}
	c.persistLocked()
	return n
}

// Stats sums the live index. It has no side effects: expired entries are
// counted until a lookup or write removes them.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		TotalSizeBytes: c.totalLocked(),
		EntryCount:     len(c.index),
		MaxSizeBytes:   c.maxSize,
	}
}

// Keys returns the indexed keys in eviction order (oldest write first).
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.keysLocked()
}

// Dir returns the cache root directory.
func (c *Cache[V]) Dir() string {
	return c.dir
}

// GetOrSet returns the cached value for key, or calls loader and stores its
// result with ttl. Concurrent callers for the same key share one loader call.
// Loader errors are returned and nothing is cached.
func (c *Cache[V]) GetOrSet(ctx context.Context, key string, loader func(context.Context) (V, error), ttl time.Duration) (V, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if v, ok := c.Get(ctx, key); ok {
			return v, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	v, _ := res.(V) //nolint:errcheck // nil interface for zero-valued V
	return v, nil
}

// Close saves the index and releases the payload store.
func (c *Cache[V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if err := c.saveLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close payload store: %w", err))
	}
	return errors.Join(errs...)
}
