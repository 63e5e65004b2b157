package prcache

import (
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/prcache/pkg/persist"
	"github.com/codeGROOVE-dev/prcache/pkg/store/compress"
)

const (
	// DefaultMaxSize is the default cap on the sum of serialized entry sizes.
	DefaultMaxSize int64 = 100 << 20
	// DefaultMaxAge is the age past which entries are swept regardless of TTL.
	DefaultMaxAge = 7 * 24 * time.Hour
	// DefaultDirName is the directory created under os.UserCacheDir().
	DefaultDirName = "prcache"
)

// Recorder receives cache metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	Lookup(result string)
	Evicted(reason string, n int)
	WriteFailed()
	CacheSize(bytes int64, entries int)
}

type noopRecorder struct{}

func (noopRecorder) Lookup(string)        {}
func (noopRecorder) Evicted(string, int)  {}
func (noopRecorder) WriteFailed()         {}
func (noopRecorder) CacheSize(int64, int) {}

// config holds Cache configuration.
type config struct {
	dir        string
	maxSize    int64
	maxAge     time.Duration
	compressor compress.Compressor
	store      persist.Store
	now        func() time.Time
	logger     *slog.Logger
	metrics    Recorder
}

func defaultConfig() *config {
	return &config{
		maxSize: DefaultMaxSize,
		maxAge:  DefaultMaxAge,
		now:     time.Now,
		metrics: noopRecorder{},
	}
}

// Option configures a Cache.
type Option func(*config)

// WithDir sets the cache root holding index.json and the payload files.
// Default: os.UserCacheDir()/prcache.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithMaxSize sets the maximum total serialized size in bytes.
// Non-positive values keep the default.
func WithMaxSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithMaxAge sets the age past which entries are swept after every write.
// Non-positive values keep the default.
func WithMaxAge(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithCompressor compresses payload files with c. Ignored when WithStore is used.
func WithCompressor(comp compress.Compressor) Option {
	return func(c *config) {
		c.compressor = comp
	}
}

// WithStore replaces the default localfs payload store.
// The index file is still written to the cache directory.
func WithStore(s persist.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithClock overrides the time source used for createdAt, TTL and age checks.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for non-fatal failures. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics records lookups, evictions and sizes on r.
func WithMetrics(r Recorder) Option {
	return func(c *config) {
		if r != nil {
			c.metrics = r
		}
	}
}
