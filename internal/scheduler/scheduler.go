// Package scheduler implements the Thread Scheduler: a per-chat-thread
// FIFO job queue that guarantees at most one run per thread is active at
// any instant, while threads run concurrently with respect to each
// other.
package scheduler

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/takopi-bot/takopi/internal/telemetry"
)

// Job is one unit of queued work for a thread. It must not block forever;
// it receives the context that cancels when the scheduler shuts down.
type Job func(ctx context.Context)

type threadQueue struct {
	mu      sync.Mutex
	pending []Job
	active  bool
}

// Scheduler owns one FIFO driver goroutine per thread that currently has
// work, tearing the driver down once its queue drains.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.Mutex
	threads map[string]*threadQueue
}

func New(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	group, gctx := errgroup.WithContext(ctx)
	_ = gctx
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		group:   group,
		threads: make(map[string]*threadQueue),
	}
}

// Submit enqueues job for threadID. If no driver is running for this
// thread, one is spawned; otherwise job is appended and the existing
// driver will pick it up in order.
func (s *Scheduler) Submit(threadID string, job Job) {
	s.mu.Lock()
	q, ok := s.threads[threadID]
	if !ok {
		q = &threadQueue{}
		s.threads[threadID] = q
	}
	q.mu.Lock()
	q.pending = append(q.pending, job)
	depth := len(q.pending)
	startDriver := !q.active
	if startDriver {
		q.active = true
	}
	q.mu.Unlock()
	s.mu.Unlock()

	telemetry.QueueDepth.WithLabelValues(threadID).Set(float64(depth))

	if startDriver {
		s.group.Go(func() error {
			s.drive(threadID, q)
			return nil
		})
	}
}

// NoteThreadKnown makes sure threadID has a queue entry, without
// enqueueing work or starting a driver. It is called from inside a running
// job when a resume token is discovered mid-stream; that thread's driver
// is already active, so later messages on it queue behind the current run.
// An entry created here stays inactive until the next Submit starts a
// driver for it.
func (s *Scheduler) NoteThreadKnown(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		s.threads[threadID] = &threadQueue{}
	}
}

func (s *Scheduler) drive(threadID string, q *threadQueue) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			q.mu.Unlock()
			telemetry.QueueDepth.WithLabelValues(threadID).Set(0)
			s.mu.Lock()
			if cur, ok := s.threads[threadID]; ok && cur == q && !q.active {
				delete(s.threads, threadID)
			}
			s.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending = q.pending[1:]
		depth := len(q.pending)
		q.mu.Unlock()
		telemetry.QueueDepth.WithLabelValues(threadID).Set(float64(depth))

		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("scheduler: job panic on thread=%s: %v", threadID, r)
				}
			}()
			job(s.ctx)
		}()
	}
}

// Shutdown cancels the context passed to every job and waits for all
// drivers to drain their current job.
func (s *Scheduler) Shutdown() {
	s.cancel()
	_ = s.group.Wait()
}
