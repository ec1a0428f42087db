// Package worker provides a background task pool using goroutines.
//
// Go Pattern: Goroutines and channels are Go's concurrency primitives.
// A goroutine is like a lightweight thread (thousands are fine), and
// channels are typed pipes for communication between goroutines.
//
// This worker pool pattern is very common in Go:
// 1. Create a buffered channel as a task queue
// 2. Spawn N worker goroutines that read from the channel
// 3. Send tasks to the channel from handlers and session loops
// 4. Workers run tasks concurrently
//
// Session loops never block on slow work (LLM calls, database writes,
// webhook deliveries). They hand it to the pool and get the result back as
// a message.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Submit when the queue has no free slot.
var ErrQueueFull = errors.New("task queue is full; try again later")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool stopped")

// Task is a unit of work run by a worker.
type Task struct {
	Name      string
	Run       func(ctx context.Context)
	CreatedAt time.Time
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Capacity  int   `json:"capacity"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	// Go Pattern: This buffered channel acts as our task queue.
	// Buffered means it can hold `queueSize` tasks before Submit fails.
	tasks   chan Task
	workers int
	log     zerolog.Logger

	// Go Pattern: sync.WaitGroup tracks running goroutines so Stop can wait
	// for in-flight tasks.
	wg sync.WaitGroup

	// Closing tasks while a Submit is sending would panic, so sends and the
	// close are serialized by mu.
	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc

	completed atomic.Int64
	panicked  atomic.Int64
}

// NewPool creates a new worker pool.
func NewPool(workers, queueSize int, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		log:     log.With().Str("component", "worker").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.log.Info().Int("workers", p.workers).Msg("starting background workers")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop drains the queue and waits for running tasks. Tasks see their
// context cancelled once Stop is called.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.log.Info().Msg("stopping workers")
	p.cancel()
	p.wg.Wait()
	p.log.Info().Int64("completed", p.completed.Load()).Msg("all workers stopped")
}

// Submit adds a task to the queue without blocking.
func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task %q has no work", task.Name)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	// Go Pattern: `select` with `default` makes channel operations non-blocking.
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Go runs fn on the pool under the given task name. It satisfies
// pipeline.Runner.
func (p *Pool) Go(name string, fn func(ctx context.Context)) error {
	return p.Submit(Task{Name: name, Run: fn})
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    len(p.tasks),
		Capacity:  cap(p.tasks),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.log.Debug().Int("worker", id).Msg("worker started")

	// Go Pattern: `range` over a channel reads values until the channel is
	// closed, so remaining tasks are drained on shutdown.
	for task := range p.tasks {
		p.run(id, task)
	}
	p.log.Debug().Int("worker", id).Msg("worker stopped")
}

// run executes one task. A panicking task is logged and does not take the
// worker down with it.
func (p *Pool) run(id int, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.log.Error().Int("worker", id).Str("task", task.Name).Interface("panic", r).Msg("task panicked")
			return
		}
		p.completed.Add(1)
		p.log.Debug().
			Int("worker", id).
			Str("task", task.Name).
			Dur("queued_for", start.Sub(task.CreatedAt)).
			Dur("took", time.Since(start)).
			Msg("task finished")
	}()
	task.Run(p.ctx)
}
