// Package scheduler runs queued tasks one at a time, driven by a periodic
// tick and by every Enqueue.
//
// Each drain attempt starts at most one task, and never while another task
// is running. A task that fails or panics is logged and dropped; the queue
// moves on at the next tick or Enqueue.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a unit of work. The context is the scheduler's base context.
type Task func(ctx context.Context) error

// Recorder receives scheduler metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	TaskDone(err error)
	QueueDepth(n int)
}

type noopRecorder struct{}

func (noopRecorder) TaskDone(error) {}
func (noopRecorder) QueueDepth(int) {}

type queued struct {
	id   uuid.UUID
	task Task
}

// Scheduler is a single-slot task runner. The zero value is not usable; call New.
type Scheduler struct {
	mu      sync.Mutex
	queue   []queued
	running bool
	changed chan struct{} // closed and replaced whenever running flips

	stop chan struct{} // non-nil while the ticker runs

	ctx     context.Context
	log     *slog.Logger
	metrics Recorder
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithContext sets the context passed to every task. Default: context.Background().
func WithContext(ctx context.Context) Option {
	return func(s *Scheduler) {
		s.ctx = ctx
	}
}

// WithLogger sets the logger for task failures. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithMetrics records task results and queue depth on r.
func WithMetrics(r Recorder) Option {
	return func(s *Scheduler) {
		s.metrics = r
	}
}

// New creates an idle scheduler with no timer running.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		changed: make(chan struct{}),
		ctx:     context.Background(),
		log:     slog.Default(),
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	return s
}

// Start begins ticking every interval. Calling Start while already started
// has no effect. A non-positive interval is ignored.
func (s *Scheduler) Start(interval time.Duration) {
	if interval <= 0 {
		s.log.Warn("ignoring scheduler start with non-positive interval", "interval", interval)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.stop = stop

	go s.tickLoop(interval, stop)
}

func (s *Scheduler) tickLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tryDrainOne()
		}
	}
}

// Stop cancels the ticker. It neither clears the queue nor interrupts a
// running task; a later Enqueue still drains queued tasks. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

// Enqueue appends task to the queue and makes one drain attempt, so an idle
// scheduler starts it without waiting for a tick. Enqueue does not wait for
// the task to run.
func (s *Scheduler) Enqueue(task Task) {
	if task == nil {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, queued{id: uuid.New(), task: task})
	s.metrics.QueueDepth(len(s.queue))
	s.mu.Unlock()

	s.tryDrainOne()
}

// tryDrainOne starts the head task unless one is already running or the
// queue is empty. Both the ticker and Enqueue go through here.
func (s *Scheduler) tryDrainOne() {
	s.mu.Lock()
	if s.running || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	q := s.queue[0]
	s.queue[0] = queued{}
	s.queue = s.queue[1:]
	s.running = true
	s.broadcastLocked()
	s.metrics.QueueDepth(len(s.queue))
	s.mu.Unlock()

	go s.run(q)
}

func (s *Scheduler) run(q queued) {
	// Back to idle on every exit path, including panics caught in call.
	defer func() {
		s.mu.Lock()
		s.running = false
		s.broadcastLocked()
		s.mu.Unlock()
	}()

	start := time.Now()
	err := s.call(q)

	s.metrics.TaskDone(err)
	if err != nil {
		s.log.Error("scheduled task failed", "task", q.id, "error", err, "duration", time.Since(start))
		return
	}
	s.log.Debug("scheduled task finished", "task", q.id, "duration", time.Since(start))
}

// broadcastLocked wakes every Wait caller. s.mu must be held.
func (s *Scheduler) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Scheduler) call(q queued) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return q.task(s.ctx)
}

// Pending returns the number of queued tasks not yet started.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Busy reports whether a task is running.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until no task is running and the queue is empty, or ctx ends.
// It wakes each time a task starts or finishes. With the ticker stopped,
// queued tasks only drain through Enqueue, so Wait may then block until ctx
// ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.running && len(s.queue) == 0 {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
