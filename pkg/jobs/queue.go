// Package jobs runs background work on a small goroutine pool.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no room.
	ErrQueueFull = errors.New("jobs: queue full")
	// ErrNotRunning is returned by Enqueue before Start or after Stop.
	ErrNotRunning = errors.New("jobs: queue not running")
)

// Job is one unit of queued work.
type Job struct {
	ID       string
	Kind     string
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A non-nil error schedules a retry.
type Handler func(context.Context, Job) error

// Config sizes the pool and its retry policy.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches jobs to a fixed number of workers. Jobs still buffered when
// Stop is called are processed before Stop returns.
type Queue struct {
	name    string
	handler Handler
	cfg     Config
	logger  *zap.Logger

	jobs chan Job
	quit chan struct{}
	wg   sync.WaitGroup

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// New builds a stopped queue.
func New(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it on a running queue is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.quit = make(chan struct{})
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop refuses new jobs, drains the buffer and waits for the workers.
// Pending retries are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.quit)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
	q.logger.Info("queue stopped")
}

// Enqueue adds a job without blocking.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return ErrNotRunning
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case job := <-q.jobs:
			q.process(job)
		case <-q.quit:
			for {
				select {
				case job := <-q.jobs:
					q.process(job)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) process(job Job) {
	err := q.handler(q.ctx, job)
	if err == nil {
		return
	}

	job.Attempt++
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if job.Attempt > q.cfg.MaxRetries {
		q.logger.Error("job gave up", fields...)
		return
	}
	q.logger.Warn("job failed, retrying", fields...)
	time.AfterFunc(q.cfg.RetryDelay, func() {
		if err := q.Enqueue(job); err != nil {
			q.logger.Warn("job retry dropped", zap.String("job_id", job.ID), zap.Error(err))
		}
	})
}
