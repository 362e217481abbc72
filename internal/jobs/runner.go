package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadgenBack/internal/metrics"
)

type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Handler performs one job. Returning an error schedules a retry unless it is Permanent
// or the attempts are exhausted.
type Handler func(ctx context.Context, job Job, steps *Steps) error

// DeadHandler is told about a job that will not be retried again.
type DeadHandler func(ctx context.Context, job Job, err error)

type Runner struct {
	queue  Queue
	cfg    Config
	logger Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	dead     map[string]DeadHandler

	now func() time.Time
}

func NewRunner(queue Queue, cfg Config, logger Logger) *Runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = defaultPromoteInterval
	}
	return &Runner{
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]Handler),
		dead:     make(map[string]DeadHandler),
		now:      time.Now,
	}
}

func (r *Runner) Register(jobType string, h Handler) {
	r.mu.Lock()
	r.handlers[jobType] = h
	r.mu.Unlock()
}

// OnDead registers a callback for jobs of jobType that end up in the dead-letter list.
func (r *Runner) OnDead(jobType string, h DeadHandler) {
	r.mu.Lock()
	r.dead[jobType] = h
	r.mu.Unlock()
}

// Enqueue schedules a new job and returns its id.
func (r *Runner) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	job, err := NewJob(jobType, payload, r.cfg.MaxAttempts)
	if err != nil {
		return "", err
	}
	if err := r.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job.ID, nil
}

func (r *Runner) Depth(ctx context.Context) (int64, error)       { return r.queue.Depth(ctx) }
func (r *Runner) DeadLetters(ctx context.Context) (int64, error) { return r.queue.DeadLetters(ctx) }

// Run starts the workers and the delayed-job promoter and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.work(ctx, worker)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.promote(ctx)
	}()
	r.logf("jobs: runner started with %d workers", r.cfg.Workers)
	wg.Wait()
	r.logf("jobs: runner stopped")
}

func (r *Runner) work(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		job, err := r.queue.Pop(ctx, r.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.errorf("jobs: worker %d pop failed: %v", worker, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		r.Process(ctx, *job)
	}
}

func (r *Runner) promote(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.queue.PromoteDue(ctx, r.now()); err != nil && ctx.Err() == nil {
				r.errorf("jobs: promote delayed jobs failed: %v", err)
			}
		}
	}
}

// Process runs one job to completion, retry or dead letter. Queue bookkeeping runs
// detached from ctx so a job interrupted by shutdown is put back instead of lost.
func (r *Runner) Process(ctx context.Context, job Job) {
	r.mu.RLock()
	h, ok := r.handlers[job.Type]
	r.mu.RUnlock()

	bg := context.WithoutCancel(ctx)
	start := r.now()
	if !ok {
		r.bury(bg, job, Permanent(fmt.Errorf("no handler for job type %q", job.Type)))
		metrics.RecordJob(job.Type, "dead", 0)
		return
	}

	err := r.run(ctx, job, h)
	elapsed := r.now().Sub(start)
	switch {
	case err == nil:
		if cerr := r.queue.ClearSteps(bg, job.ID); cerr != nil {
			r.errorf("jobs: clear checkpoints for %s: %v", job.ID, cerr)
		}
		metrics.RecordJob(job.Type, "success", elapsed)
	case ctx.Err() != nil && !IsPermanent(err):
		// Interrupted by shutdown: the attempt does not count.
		if qerr := r.queue.Enqueue(bg, job); qerr != nil {
			r.errorf("jobs: requeue interrupted %s %s failed: %v", job.Type, job.ID, qerr)
		}
		r.logf("jobs: %s %s interrupted, requeued: %v", job.Type, job.ID, err)
		metrics.RecordJob(job.Type, "retry", elapsed)
	case IsPermanent(err) || job.Attempt+1 >= job.MaxAttempts:
		r.bury(bg, job, err)
		metrics.RecordJob(job.Type, "dead", elapsed)
	default:
		job.Attempt++
		job.LastError = err.Error()
		delay := time.Duration(job.Attempt) * r.cfg.Backoff
		if qerr := r.queue.EnqueueAt(bg, job, r.now().Add(delay)); qerr != nil {
			r.errorf("jobs: requeue %s %s failed: %v", job.Type, job.ID, qerr)
		}
		r.errorf("jobs: %s %s attempt %d/%d failed, retry in %s: %v", job.Type, job.ID, job.Attempt, job.MaxAttempts, delay, err)
		metrics.RecordJob(job.Type, "retry", elapsed)
	}
}

func (r *Runner) run(ctx context.Context, job Job, h Handler) (err error) {
	if r.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.JobTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	steps, err := newSteps(ctx, r.queue, job.ID)
	if err != nil {
		return err
	}
	return h(ctx, job, steps)
}

func (r *Runner) bury(ctx context.Context, job Job, err error) {
	if derr := r.queue.DeadLetter(ctx, DeadJob{Job: job, Error: err.Error(), FailedAt: r.now().UTC()}); derr != nil {
		r.errorf("jobs: dead-letter %s failed: %v", job.ID, derr)
	}
	if cerr := r.queue.ClearSteps(ctx, job.ID); cerr != nil {
		r.errorf("jobs: clear checkpoints for %s: %v", job.ID, cerr)
	}
	r.errorf("jobs: %s %s moved to dead letter: %v", job.Type, job.ID, err)

	r.mu.RLock()
	cb := r.dead[job.Type]
	r.mu.RUnlock()
	if cb != nil {
		cb(ctx, job, err)
	}
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Infof(format, args...)
	}
}

func (r *Runner) errorf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Errorf(format, args...)
	}
}
