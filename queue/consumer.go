package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docreview/core"
)

const (
	defaultWorkers      = 3
	defaultMaxAttempts  = 5
	defaultJobTimeout   = 5 * time.Minute
	defaultRetryDelay   = 2 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

// Handler processes one job. A returned error requeues the job for another
// attempt; nil acknowledges it.
type Handler func(ctx context.Context, job *core.Job) error

// Consumer pulls jobs off a Queue and runs them on a fixed-size worker pool.
type Consumer struct {
	queue        *Queue
	handler      Handler
	pool         *ants.Pool
	maxAttempts  int
	jobTimeout   time.Duration
	retryDelay   time.Duration
	pollInterval time.Duration
	logger       *slog.Logger

	// wg tracks running jobs and scheduled retries so Release can wait
	// for them before the caller tears the queue down.
	wg sync.WaitGroup
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer) error

// WithWorkers sets the worker pool size. Default is 3.
func WithWorkers(size int) ConsumerOption {
	return func(c *Consumer) error {
		if size < 1 {
			size = 1
		}
		if c.pool != nil {
			c.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithMaxAttempts sets how many times a job runs before it is dropped.
func WithMaxAttempts(n int) ConsumerOption {
	return func(c *Consumer) error {
		if n < 1 {
			n = 1
		}
		c.maxAttempts = n
		return nil
	}
}

// WithJobTimeout sets the wall-clock deadline for a single attempt.
func WithJobTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) error {
		if d > 0 {
			c.jobTimeout = d
		}
		return nil
	}
}

// WithRetryDelay sets the base redelivery delay. The delay doubles with
// each failed attempt of a job.
func WithRetryDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) error {
		if d >= 0 {
			c.retryDelay = d
		}
		return nil
	}
}

// WithPollInterval sets how often an idle consumer checks the queue.
func WithPollInterval(d time.Duration) ConsumerOption {
	return func(c *Consumer) error {
		if d > 0 {
			c.pollInterval = d
		}
		return nil
	}
}

// WithConsumerLogger sets a custom logger. Default is slog.Default().
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewConsumer creates a consumer for the queue.
func NewConsumer(queue *Queue, handler Handler, opts ...ConsumerOption) (*Consumer, error) {
	if queue == nil {
		return nil, errors.New("queue is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	pool, err := ants.NewPool(defaultWorkers)
	if err != nil {
		return nil, err
	}

	c := &Consumer{
		queue:        queue,
		handler:      handler,
		pool:         pool,
		maxAttempts:  defaultMaxAttempts,
		jobTimeout:   defaultJobTimeout,
		retryDelay:   defaultRetryDelay,
		pollInterval: defaultPollInterval,
		logger:       slog.Default().With("component", "consumer"),
	}

	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.pool.Release()
			return nil, optErr
		}
	}

	return c, nil
}

// Run pulls jobs until the context is cancelled. It blocks.
func (c *Consumer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := c.queue.Dequeue(ctx)
		if err == ErrEmpty {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				continue
			}
		}
		if err != nil {
			return err
		}

		c.wg.Add(1)
		if err := c.pool.Submit(func() {
			defer c.wg.Done()
			c.runJob(ctx, job)
		}); err != nil {
			c.wg.Done()
			// Pool released under us; return the lease so the job survives.
			c.logger.Error("failed to submit job", "docId", job.DocID, "err", err)
			if reqErr := c.queue.Requeue(ctx, job); reqErr != nil {
				c.logger.Error("failed to requeue job", "docId", job.DocID, "err", reqErr)
			}
			return err
		}
	}
}

func (c *Consumer) runJob(ctx context.Context, job *core.Job) {
	attempt := job.Attempts + 1
	logger := c.logger.With("docId", job.DocID, "attempt", attempt)

	jobCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	err := c.handler(jobCtx, job)
	cancel()

	if err == nil {
		logger.Debug("job completed")
		c.ack(ctx, job, logger)
		return
	}

	logger.Warn("job failed", "err", err)

	if attempt >= c.maxAttempts {
		logger.Error("job dead after max attempts", "maxAttempts", c.maxAttempts)
		c.ack(ctx, job, logger)
		return
	}

	job.Attempts = attempt
	c.scheduleRetry(ctx, job, attempt, logger)
}

// scheduleRetry makes the job deliverable again after an exponential
// backoff. The wait runs outside the pool so a failing job never holds a
// worker slot through its delay.
func (c *Consumer) scheduleRetry(ctx context.Context, job *core.Job, attempt int, logger *slog.Logger) {
	delay := c.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			// Requeue immediately so the job survives shutdown.
		case <-timer.C:
		}

		if err := c.queue.Requeue(ctx, job); err != nil {
			logger.Error("failed to requeue job", "err", err)
		}
	}()
}

func (c *Consumer) ack(ctx context.Context, job *core.Job, logger *slog.Logger) {
	if err := c.queue.Ack(ctx, job.DocID); err != nil {
		logger.Error("failed to ack job", "err", err)
	}
}

// Release waits for running jobs and scheduled retries, then stops the
// worker pool. Run must have returned before calling Release.
func (c *Consumer) Release() {
	c.wg.Wait()
	c.pool.Release()
}
