package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"transcript-server/internal/logging"
)

var (
	// ErrQueueFull is returned when the job queue has no free slot.
	ErrQueueFull = errors.New("job queue is full")
	// ErrPoolStopped is returned after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Task is one unit of work. The context is cancelled when the pool is
// stopped without draining.
type Task func(ctx context.Context)

// PoolConfig sizes a Pool.
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// Metrics tracks pool activity.
type Metrics struct {
	ActiveWorkers  atomic.Int64
	PendingTasks   atomic.Int64
	CompletedTasks atomic.Int64
	PanickedTasks  atomic.Int64
	ProcessingTime atomic.Int64 // nanoseconds
}

// Pool runs tasks on a fixed number of workers fed by a bounded queue.
type Pool struct {
	workers int
	tasks   chan Task
	log     logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	metrics Metrics
}

// NewPool creates a pool. Non-positive sizes fall back to one worker and
// a queue of one.
func NewPool(cfg PoolConfig, log logrus.FieldLogger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: cfg.Workers,
		tasks:   make(chan Task, cfg.QueueSize),
		log:     logging.OrDiscard(log),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.tasks <- task:
		p.metrics.PendingTasks.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting tasks and waits for queued tasks to finish. When ctx
// expires first, running tasks see their context cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// Snapshot returns the current metrics.
func (p *Pool) Snapshot() map[string]int64 {
	return map[string]int64{
		"active_workers":  p.metrics.ActiveWorkers.Load(),
		"pending_tasks":   p.metrics.PendingTasks.Load(),
		"completed_tasks": p.metrics.CompletedTasks.Load(),
		"panicked_tasks":  p.metrics.PanickedTasks.Load(),
		"processing_time": p.metrics.ProcessingTime.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	start := time.Now()
	p.metrics.ActiveWorkers.Add(1)
	p.metrics.PendingTasks.Add(-1)

	defer func() {
		p.metrics.ActiveWorkers.Add(-1)
		p.metrics.ProcessingTime.Add(time.Since(start).Nanoseconds())
		if r := recover(); r != nil {
			p.metrics.PanickedTasks.Add(1)
			p.log.WithField("panic", r).Error("worker task panicked")
			return
		}
		p.metrics.CompletedTasks.Add(1)
	}()

	task(p.ctx)
}
