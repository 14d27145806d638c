// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/ports/adapter"
	"opticalfiber-backend/internal/infra/logging"
	"opticalfiber-backend/internal/infra/metrics"
)

var (
	ErrQueueFull   = fmt.Errorf("worker queue full: %w", domain.ErrUnavailable)
	ErrPoolStopped = fmt.Errorf("worker pool stopped: %w", domain.ErrUnavailable)
	ErrNilJob      = errors.New("nil job")
)

// Compile-time check
var _ adapter.JobQueue = (*Pool)(nil)

// Pool runs submitted jobs on a fixed set of workers. A failed job is retried
// after a fixed backoff until it succeeds, returns a permanent error, or uses
// up maxAttempts.
type Pool struct {
	wg   sync.WaitGroup
	mu   sync.RWMutex
	jobs chan adapter.Job
	done chan struct{} // closed when the pool's context ends
	n    int

	maxAttempts int
	backoff     time.Duration
	closed      bool
	log         *zerolog.Logger
}

func NewPool(workers, queueSize, maxAttempts int, backoff time.Duration, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	l := logging.Component(logger, "worker.Pool")
	return &Pool{
		jobs:        make(chan adapter.Job, queueSize),
		done:        make(chan struct{}),
		n:           workers,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         l,
	}
}

// Start launches the workers. Jobs run with a context detached from ctx's
// cancellation so that queued work drains on shutdown; only backoff waits are
// cut short once ctx ends.
func (p *Pool) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	go func() {
		<-ctx.Done()
		close(p.done)
	}()
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.run(runCtx, id, job)
			}
		}(i)
	}
}

// Stop refuses new jobs and waits for the queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Run starts the pool and blocks until ctx ends, then drains it.
func (p *Pool) Run(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()
	p.Stop()
	return nil
}

func (p *Pool) Submit(job adapter.Job) error {
	if job.Run == nil {
		return ErrNilJob
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) run(ctx context.Context, id int, job adapter.Job) {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = runOnce(ctx, job)
		if err == nil {
			metrics.IncRouteJob("completed")
			p.log.Debug().Int("worker", id).Str("job", job.Name).Int("attempt", attempt).Msg("job completed")
			return
		}
		if adapter.IsPermanent(err) || attempt == p.maxAttempts {
			break
		}
		metrics.IncRouteJob("retried")
		p.log.Warn().Err(err).Int("worker", id).Str("job", job.Name).Int("attempt", attempt).Dur("backoff", p.backoff).Msg("job failed; retrying")
		if !p.wait() {
			break
		}
	}

	metrics.IncRouteJob("failed")
	p.log.Error().Err(err).Int("worker", id).Str("job", job.Name).Bool("permanent", adapter.IsPermanent(err)).Msg("job gave up")
	if job.OnGiveUp != nil {
		job.OnGiveUp(ctx, err)
	}
}

// runOnce runs job once; a panic counts as a failed attempt.
func runOnce(ctx context.Context, job adapter.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}

// wait sleeps for the backoff and reports false if the pool is shutting down.
func (p *Pool) wait() bool {
	if p.backoff <= 0 {
		return true
	}
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-p.done:
		return false
	}
}
