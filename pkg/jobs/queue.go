package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned by Enqueue before Start.
	ErrNotStarted = errors.New("queue not started")
	// ErrStopped is returned by Enqueue once Shutdown or Stop began.
	ErrStopped = errors.New("queue stopped")
	// ErrFull is returned by Enqueue when the buffer has no room.
	ErrFull = errors.New("queue is full")
)

// Job is one queued unit of work. Attempt counts earlier failed executions.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour. MaxRetries of zero disables
// retries; Retryable, when set, limits retries to the errors it accepts.
// OnGiveUp is called once for every failed job that will not run again,
// including retries that could not be requeued and jobs dropped on shutdown.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Retryable  func(error) bool
	OnGiveUp   func(Job, error)
	Logger     *zap.Logger
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending  int `json:"pending"`
	Running  int `json:"running"`
	Retrying int `json:"retrying"`
}

// Queue dispatches jobs to a fixed set of goroutines. Jobs are dropped, not
// persisted, when the process exits.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	retryable  func(error) bool
	onGiveUp   func(Job, error)
	logger     *zap.Logger

	jobs     chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	closing  bool
	running  atomic.Int32
	retrying atomic.Int32
}

// NewQueue builds a queue; call Start before Enqueue.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
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
	if cfg.Retryable == nil {
		cfg.Retryable = func(error) bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		retryable:  cfg.Retryable,
		onGiveUp:   cfg.OnGiveUp,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calls after the first are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers), zap.Int("buffer", cap(q.jobs)))
}

// Stop cancels running jobs, waits for the workers to exit and gives up on
// jobs still buffered.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.closing = true
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	dropped := 0
	for len(q.jobs) > 0 {
		q.giveUp(<-q.jobs, ErrStopped)
		dropped++
	}
	q.logger.Info("queue stopped", zap.Int("dropped", dropped))
}

// Shutdown stops accepting jobs and waits for in-flight handlers to return
// before stopping. Buffered jobs that have not started are given up. When ctx
// ends first, running handlers are cancelled.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.closing = true
	q.mu.Unlock()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for q.running.Load() > 0 {
		select {
		case <-ctx.Done():
			q.logger.Warn("cancelling running jobs", zap.Int32("running", q.running.Load()))
			q.Stop()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	q.Stop()
	return nil
}

// Enqueue pushes a job without blocking.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	started, closing := q.started, q.closing
	q.mu.Unlock()

	if !started {
		return ErrNotStarted
	}
	if closing {
		return ErrStopped
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrFull
	}
}

// Pending returns the number of buffered jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Stats reports buffered, running and retry-scheduled jobs.
func (q *Queue) Stats() Stats {
	return Stats{
		Pending:  len(q.jobs),
		Running:  int(q.running.Load()),
		Retrying: int(q.retrying.Load()),
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if q.isClosing() {
				q.giveUp(job, ErrStopped)
				continue
			}
			q.run(job)
		}
	}
}

func (q *Queue) run(job Job) {
	q.running.Add(1)
	defer q.running.Add(-1)

	started := time.Now()
	err := q.handler(q.ctx, job)
	if err != nil {
		q.handleFailure(job, err)
		return
	}
	q.logger.Debug("job done", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Duration("took", time.Since(started)))
}

func (q *Queue) isClosing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closing
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if job.Attempt > q.maxRetries || !q.retryable(err) {
		q.logger.Error("job failed", fields...)
		q.giveUp(job, err)
		return
	}
	if q.isClosing() {
		q.logger.Error("job failed during shutdown", fields...)
		q.giveUp(job, fmt.Errorf("%w: %w", ErrStopped, err))
		return
	}
	q.logger.Warn("job failed, retrying", append(fields, zap.Duration("delay", q.retryDelay))...)

	q.retrying.Add(1)
	go func(j Job) {
		defer q.retrying.Add(-1)
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.giveUp(j, fmt.Errorf("%w: %w", ErrStopped, err))
		case <-timer.C:
			if enqErr := q.Enqueue(j); enqErr != nil {
				q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(enqErr))
				q.giveUp(j, fmt.Errorf("requeue: %w: %w", enqErr, err))
			}
		}
	}(job)
}

func (q *Queue) giveUp(job Job, err error) {
	if q.onGiveUp != nil {
		q.onGiveUp(job, err)
	}
}
