package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/metrics"
)

// Job is what travels over the queue; the durable state lives in the job table.
type Job struct {
	ID          uuid.UUID
	SubmittedAt time.Time
	RequestID   string
}

// Handler processes one dequeued job. It owns all error reporting.
type Handler func(ctx context.Context, job Job)

var ErrQueueClosed = errors.New("queue is shutting down")

// Queue is a bounded worker pool over a buffered channel.
type Queue struct {
	handle  Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithQueueMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

func NewQueue(handle Handler, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		handle:  handle,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.metrics.QueueDepth(len(q.ch))
					ctx := common.WithJobID(context.Background(), job.ID.String())
					jobLog := q.logger.With("worker_id", workerID, "job_id", job.ID)
					if job.RequestID != "" {
						ctx = common.WithRequestID(ctx, job.RequestID)
						jobLog = jobLog.With("request_id", job.RequestID)
					}
					ctx = common.WithLogger(ctx, jobLog)
					ctx, cancel := context.WithTimeout(ctx, q.timeout)
					q.handle(ctx, job)
					cancel()
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", job.ID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.metrics.QueueDepth(len(q.ch))
	q.logger.Debug("queued job for processing", "job_id", job.ID)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to drain, or for ctx.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
