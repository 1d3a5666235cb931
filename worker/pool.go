// Package worker provides the process-wide pool of cooperative workers
// that runs every dispatched pipeline traversal (spec.md §4.6), adapted
// from scale/worker_pool.go's WorkerPool: same queue-then-scale submit
// path and ephemeral-worker idle-out, but fire-and-forget instead of a
// results channel consumers must drain, since §4.6 promises only "no
// item is dropped; ordering not guaranteed", not per-task outcomes.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task is one unit of queued work: a pipeline dispatch's Run call,
// bound to its message and context ahead of time by the caller.
type Task func(ctx context.Context)

// Config configures the pool.
type Config struct {
	// MinWorkers is the minimum number of goroutines kept alive.
	MinWorkers int
	// MaxWorkers is the maximum number of goroutines allowed.
	MaxWorkers int
	// QueueSize is the capacity of the task queue.
	QueueSize int
	// IdleTimeout is how long an ephemeral worker waits before exiting.
	IdleTimeout time.Duration
}

// DefaultConfig returns sensible defaults ("as many as the runtime can
// cheaply schedule", spec.md §4.6).
func DefaultConfig() Config {
	return Config{
		MinWorkers:  4,
		MaxWorkers:  64,
		QueueSize:   1024,
		IdleTimeout: 30 * time.Second,
	}
}

// Pool is a process-wide pool of cooperative workers. Submitted tasks
// are never dropped; ordering between tasks is not guaranteed.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	tasks  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	activeWorkers atomic.Int64

	mu      sync.Mutex
	running bool
}

// New builds a pool; call Start before Submit.
func New(cfg Config, logger *slog.Logger) *Pool {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 4
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{cfg: cfg, logger: logger, tasks: make(chan Task, cfg.QueueSize)}
}

// Start launches MinWorkers goroutines.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("worker: pool already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for i := 0; i < p.cfg.MinWorkers; i++ {
		p.spawnWorker(false)
	}
	return nil
}

// Submit enqueues task, scaling the pool up if the queue is getting
// full and it hasn't reached MaxWorkers yet. It blocks only if the
// queue is completely full and no further scaling is possible.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("worker: pool not running")
	}
	ctx := p.ctx
	p.mu.Unlock()

	select {
	case p.tasks <- task:
		p.maybeScale()
		return nil
	default:
	}

	p.maybeScale()

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth returns the number of tasks currently queued.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

// ActiveWorkers returns the number of currently running worker
// goroutines.
func (p *Pool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// Stop stops accepting new work and blocks until every queued and
// in-flight task has completed (spec.md §4.6: "stopping the pool
// blocks until in-flight items complete").
func (p *Pool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
	p.cancel()
	return nil
}

func (p *Pool) maybeScale() {
	queueLen := len(p.tasks)
	threshold := p.cfg.QueueSize * 3 / 4
	if queueLen > threshold && int(p.activeWorkers.Load()) < p.cfg.MaxWorkers {
		p.spawnWorker(true)
	}
}

// spawnWorker starts a worker goroutine. An ephemeral worker exits
// after IdleTimeout with no work, provided the pool stays at or above
// MinWorkers; the initial MinWorkers workers are never ephemeral.
func (p *Pool) spawnWorker(ephemeral bool) {
	p.wg.Add(1)
	p.activeWorkers.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.activeWorkers.Add(-1)

		idleTimer := time.NewTimer(p.cfg.IdleTimeout)
		defer idleTimer.Stop()

		for {
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(p.cfg.IdleTimeout)

			select {
			case task, ok := <-p.tasks:
				if !ok {
					return
				}
				p.runTask(task)

			case <-idleTimer.C:
				if ephemeral && int(p.activeWorkers.Load()) > p.cfg.MinWorkers {
					return
				}

			case <-p.ctx.Done():
				return
			}
		}
	}()
}

func (p *Pool) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked", "recovered", r)
		}
	}()
	task(p.ctx)
}
