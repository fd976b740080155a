// Package tasks runs the service's periodic background jobs.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownJob is returned by RunOnce for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the run is only bounded by Stop.
	Timeout time.Duration
	// SkipInitial waits one Interval before the first run instead of running
	// at Start.
	SkipInitial bool
	Run         func(ctx context.Context) error
}

// Runner drives each registered Job on its own goroutine until Stop.
type Runner struct {
	logger *zap.Logger
	jobs   []Job

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]int
}

// New returns a Runner with no jobs.
func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger, inFlight: map[string]int{}}
}

// Register adds job. Jobs registered after Start are only reachable via RunOnce.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered job names in registration order.
func (r *Runner) Jobs() []string {
	names := make([]string, len(r.jobs))
	for i, j := range r.jobs {
		names[i] = j.Name
	}
	return names
}

// Start launches every registered job.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(len(r.jobs))
	for _, job := range r.jobs {
		go r.loop(ctx, job)
	}
	r.logger.Info("background task runner started", zap.Strings("jobs", r.Jobs()))
}

// Stop cancels the jobs and waits for in-flight runs to return. If ctx ends
// first, the names of the runs still going are logged and ctx.Err() returned.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background task runner stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("background task runner shutdown timed out",
			zap.Strings("jobs_still_running", r.busy()))
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	wait := time.Duration(0)
	if job.SkipInitial {
		wait = job.Interval
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.runLogged(ctx, job)
			timer.Reset(job.Interval)
		}
	}
}

// runLogged performs one scheduled run and logs its outcome. Errors never
// stop the schedule.
func (r *Runner) runLogged(ctx context.Context, job Job) {
	r.track(job.Name, 1)
	defer r.track(job.Name, -1)

	start := time.Now()
	err := r.call(ctx, job)
	log := r.logger.With(zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
	switch {
	case err == nil:
		log.Debug("job completed")
	case ctx.Err() != nil:
		log.Debug("job cancelled by shutdown")
	default:
		log.Error("job failed", zap.Error(err))
	}
}

// call runs job once under its timeout, turning a panic into an error.
func (r *Runner) call(ctx context.Context, job Job) (err error) {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, p)
		}
	}()
	return job.Run(ctx)
}

func (r *Runner) track(name string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[name] += delta; r.inFlight[name] <= 0 {
		delete(r.inFlight, name)
	}
}

func (r *Runner) busy() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.inFlight))
	for n := range r.inFlight {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunOnce runs the named job now, outside its schedule, and returns its error.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, job := range r.jobs {
		if job.Name == name {
			return r.call(ctx, job)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}
