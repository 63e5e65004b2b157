// Package refresh keeps JSON endpoints warm in a prcache.Cache by fetching
// them on the single-slot scheduler.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/codeGROOVE-dev/prcache"
	"github.com/codeGROOVE-dev/prcache/pkg/scheduler"
)

// Job is one endpoint whose JSON response is cached under Key.
type Job struct {
	Key string
	URL string
	TTL time.Duration
}

// Refresher fetches jobs over HTTP and stores the responses.
type Refresher struct {
	cache *prcache.Cache[json.RawMessage]
	sched *scheduler.Scheduler
	http  *resty.Client
	log   *slog.Logger

	mu      sync.Mutex
	pending map[string]bool // keys queued or running
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(r *Refresher) {
		if token = strings.TrimSpace(token); token != "" {
			r.http.SetAuthToken(token)
		}
	}
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.http.SetTimeout(d)
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(r *Refresher) {
		r.http.SetHeader(key, value)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Refresher) {
		if l != nil {
			r.log = l
		}
	}
}

// New returns a Refresher that stores into c and runs fetches on s.
func New(c *prcache.Cache[json.RawMessage], s *scheduler.Scheduler, opts ...Option) *Refresher {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("User-Agent", "prcache")

	r := &Refresher{
		cache:   c,
		sched:   s,
		http:    client,
		log:     slog.Default(),
		pending: make(map[string]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Enqueue schedules one fetch per job. A job whose key is already queued or
// running is skipped.
func (r *Refresher) Enqueue(jobs ...Job) int {
	n := 0
	for _, j := range jobs {
		if j.Key == "" || j.URL == "" {
			r.log.Warn("skipping refresh job without key or url", "key", j.Key, "url", j.URL)
			continue
		}

		r.mu.Lock()
		if r.pending[j.Key] {
			r.mu.Unlock()
			r.log.Debug("refresh already pending", "key", j.Key)
			continue
		}
		r.pending[j.Key] = true
		r.mu.Unlock()

		r.sched.Enqueue(r.task(j))
		n++
	}
	return n
}

func (r *Refresher) task(j Job) scheduler.Task {
	return func(ctx context.Context) error {
		defer func() {
			r.mu.Lock()
			delete(r.pending, j.Key)
			r.mu.Unlock()
		}()

		data, err := r.get(ctx, j.URL)
		if err != nil {
			return fmt.Errorf("refresh %s: %w", j.Key, err)
		}
		if err := r.cache.Put(ctx, j.Key, data, j.TTL); err != nil {
			return fmt.Errorf("refresh %s: %w", j.Key, err)
		}
		r.log.Debug("refreshed cache entry", "key", j.Key, "bytes", len(data))
		return nil
	}
}

// Run enqueues jobs immediately and then every period until ctx is done.
func (r *Refresher) Run(ctx context.Context, every time.Duration, jobs []Job) error {
	if every <= 0 {
		return fmt.Errorf("invalid refresh period: %s", every)
	}

	r.Enqueue(jobs...)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Enqueue(jobs...)
		}
	}
}

// Fetch returns the cached response for j, fetching it on a miss.
// Concurrent fetches of the same key share one request.
func (r *Refresher) Fetch(ctx context.Context, j Job) (json.RawMessage, error) {
	if j.Key == "" || j.URL == "" {
		return nil, errors.New("job requires key and url")
	}
	return r.cache.GetOrSet(ctx, j.Key, func(ctx context.Context) (json.RawMessage, error) {
		return r.get(ctx, j.URL)
	}, j.TTL)
}

func (r *Refresher) get(ctx context.Context, url string) (json.RawMessage, error) {
	resp, err := r.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get %s: http %d: %s", url, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("get %s: response is not valid JSON", url)
	}
	return json.RawMessage(body), nil
}
