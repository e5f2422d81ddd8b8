// Package worker provides the bounded worker pool that runs blocking inference
// calls off the HTTP accept path.
//
// The pool size is the device's real parallelism, so the pool doubles as the
// concurrency gate that keeps a single accelerator from being oversubscribed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	defaultNumWorkers   uint = 1
	defaultJobQueueSize uint = 64
)

// ErrPoolClosed is returned by Submit once Close has been called.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a blocking inference call.
type Task func(ctx context.Context) ([]float32, error)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Name labels the job in logs (e.g. "text", "image").
	Name string

	ctx    context.Context
	task   Task
	result chan result
}

type result struct {
	embedding []float32
	err       error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	InFlight  int64 `json:"in_flight"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Pool runs submitted tasks on a fixed set of workers.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool

	inFlight  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Submit queues task and blocks until it has run.
//
// ctx bounds only the wait: once a worker picks the job up it runs to
// completion on a context detached from the caller's cancellation, and the
// caller gets ctx.Err() if it stopped waiting first.
func (p *Pool) Submit(ctx context.Context, name string, task Task) ([]float32, error) {
	job := Job{
		Name:   name,
		ctx:    context.WithoutCancel(ctx),
		task:   task,
		result: make(chan result, 1),
	}

	if err := p.enqueue(ctx, job); err != nil {
		return nil, err
	}

	select {
	case r := <-job.result:
		return r.embedding, r.err
	case <-ctx.Done():
		p.logger.Debug("caller stopped waiting, job left to finish",
			zap.String("job", name),
			zap.Error(ctx.Err()),
		)
		return nil, ctx.Err()
	}
}

func (p *Pool) enqueue(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", zap.String("job", job.Name))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of pool activity.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.config.NumWorkers),
		Queued:    len(p.queue),
		InFlight:  p.inFlight.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Close stops accepting jobs and waits for queued and in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}

// processJob runs a single job and hands the outcome back to its submitter.
// A panicking task is reported as an error so one bad request cannot take a
// worker down.
func (p *Pool) processJob(job Job) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	start := time.Now()
	emb, err := p.run(job)

	if err != nil {
		p.failed.Add(1)
		p.logger.Debug("job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	} else {
		p.completed.Add(1)
		p.logger.Debug("job done",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("dim", len(emb)),
		)
	}

	job.result <- result{embedding: emb, err: err}
}

func (p *Pool) run(job Job) (emb []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.task(job.ctx)
}
