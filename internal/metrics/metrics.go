// Package metrics exposes Prometheus collectors for the cache and scheduler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup results.
const (
	Hit     = "hit"
	Miss    = "miss"
	Expired = "expired"
	Error   = "error"
)

// Eviction reasons.
const (
	ReasonAge    = "age"
	ReasonSize   = "size"
	ReasonOrphan = "orphan"
)

// Metrics wraps the prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	lookups       *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	writeFailures prometheus.Counter
	sizeBytes     prometheus.Gauge
	entries       prometheus.Gauge

	tasks      *prometheus.CounterVec
	queueDepth prometheus.Gauge
}

// New creates and registers the collectors on a fresh registry.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"}, // hit, miss, expired, error
		),

		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Entries removed by the age sweep or size enforcement",
			},
			[]string{"reason"},
		),

		writeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_write_failures_total",
				Help:      "Payload or index writes that failed",
			},
		),

		sizeBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_size_bytes",
				Help:      "Sum of serialized payload sizes in the index",
			},
		),

		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entries",
				Help:      "Number of entries in the index",
			},
		),

		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_tasks_total",
				Help:      "Scheduler tasks finished by status",
			},
			[]string{"status"}, // ok, error
		),

		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_queue_depth",
				Help:      "Tasks waiting in the scheduler queue",
			},
		),
	}

	registry.MustRegister(
		m.lookups,
		m.evictions,
		m.writeFailures,
		m.sizeBytes,
		m.entries,
		m.tasks,
		m.queueDepth,
	)

	return m
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (for custom collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Lookup records the result of a Get or Has.
func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

// Evicted records n entries removed for reason.
func (m *Metrics) Evicted(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.evictions.WithLabelValues(reason).Add(float64(n))
}

// WriteFailed records a failed payload or index write.
func (m *Metrics) WriteFailed() {
	if m == nil {
		return
	}
	m.writeFailures.Inc()
}

// CacheSize sets the current index totals.
func (m *Metrics) CacheSize(bytes int64, entries int) {
	if m == nil {
		return
	}
	m.sizeBytes.Set(float64(bytes))
	m.entries.Set(float64(entries))
}

// TaskDone records a finished scheduler task.
func (m *Metrics) TaskDone(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.tasks.WithLabelValues(status).Inc()
}

// QueueDepth sets the number of queued scheduler tasks.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
