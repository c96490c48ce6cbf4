package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Job is a unit of periodic work. Errors are logged, not retried; the
// job runs again at its next scheduled time regardless.
type Job func(ctx context.Context) error

// Runner executes registered jobs at their scheduled times. Jobs run
// sequentially in the runner's goroutine; a job that panics is logged
// and does not take the runner down.
type Runner struct {
	mu       sync.Mutex
	jobs     map[string]*scheduledJob
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// scheduledJob tracks a job's schedule and next due time
type scheduledJob struct {
	name     string
	schedule Schedule
	run      Job
	nextRun  time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCheckInterval sets how often the runner polls for due jobs.
func WithCheckInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger for job lifecycle events.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithNowFunc overrides the runner's clock. Intended for tests.
func WithNowFunc(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a runner with no jobs registered.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		jobs:     make(map[string]*scheduledJob),
		interval: 30 * time.Second,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddJob registers a periodic job under a unique name.
func (r *Runner) AddJob(name string, sched Schedule, job Job) error {
	if sched == nil {
		return ErrNilSchedule
	}
	if job == nil {
		return ErrNilJob
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}
	r.jobs[name] = &scheduledJob{
		name:     name,
		schedule: sched,
		run:      job,
		nextRun:  sched.Next(r.now()),
	}

	r.logger.Info("registered periodic job",
		slog.String("job", name),
		slog.String("schedule", sched.String()))
	return nil
}

// Start blocks running due jobs until the context is cancelled. Returns
// ErrNoJobs when nothing is registered, otherwise ctx.Err() on shutdown.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	jobCount := len(r.jobs)
	r.mu.Unlock()

	if jobCount == 0 {
		return ErrNoJobs
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("schedule runner started", slog.Int("jobs", jobCount))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("schedule runner stopped")
			return ctx.Err()
		case <-ticker.C:
			r.runDue(ctx)
		}
	}
}

// RunDue executes every job whose scheduled time has arrived. Exposed
// for callers that drive scheduling themselves instead of using Start.
func (r *Runner) RunDue(ctx context.Context) {
	r.runDue(ctx)
}

func (r *Runner) runDue(ctx context.Context) {
	now := r.now()

	r.mu.Lock()
	var due []*scheduledJob
	for _, job := range r.jobs {
		if !job.nextRun.After(now) {
			due = append(due, job)
			job.nextRun = job.schedule.Next(now)
		}
	}
	r.mu.Unlock()

	for _, job := range due {
		r.runJob(ctx, job)
	}
}

func (r *Runner) runJob(ctx context.Context, job *scheduledJob) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("periodic job panicked",
				slog.String("job", job.name),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	start := r.now()
	if err := job.run(ctx); err != nil {
		r.logger.Error("periodic job failed",
			slog.String("job", job.name),
			slog.String("error", err.Error()),
			slog.Duration("duration", r.now().Sub(start)))
		return
	}
	r.logger.Info("periodic job completed",
		slog.String("job", job.name),
		slog.Duration("duration", r.now().Sub(start)))
}
