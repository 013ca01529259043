// Package scheduler keeps the registry of recurring per-project jobs.
//
// A Scheduler is driven by a host loop that calls RunPending about once a
// second. Due jobs run synchronously on the caller's goroutine in
// registration order; the Scheduler is not safe for concurrent use and all
// registry mutation must happen on that same goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Action is the work a job performs on each run
type Action func(ctx context.Context) error

// ErrSkipped is returned by an action that found nothing to do
var ErrSkipped = errors.New("nothing to do")

// Task describes a job before it is registered
type Task struct {
	Project  string
	Action   string
	Interval time.Duration
	Run      Action
}

// Job is a registered recurring action
type Job struct {
	Project  string
	Action   string
	Interval time.Duration
	LastRun  time.Time
	NextRun  time.Time
	run      Action
}

// Name identifies the job in logs
func (j *Job) Name() string {
	return j.Project + "/" + j.Action
}

// Clock abstracts time for tests
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Observer is notified after every job run
type Observer func(job *Job, err error, elapsed time.Duration)

// Scheduler holds recurring jobs and runs the due ones on demand
type Scheduler struct {
	jobs     []*Job
	clock    Clock
	logger   *slog.Logger
	observer Observer
	running  bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithObserver registers a callback invoked after each job run
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// New creates an empty scheduler
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{clock: systemClock{}, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every registers action to run every interval. The first run happens one
// interval after registration. Registering the same action twice yields two
// independent jobs.
func (s *Scheduler) Every(interval time.Duration, project, action string, run Action) *Job {
	now := s.clock.Now()
	job := &Job{
		Project:  project,
		Action:   action,
		Interval: interval,
		NextRun:  now.Add(interval),
		run:      run,
	}
	s.jobs = append(s.jobs, job)
	return job
}

// Add registers a task
func (s *Scheduler) Add(t Task) *Job {
	return s.Every(t.Interval, t.Project, t.Action, t.Run)
}

// CancelAll removes every registered job
func (s *Scheduler) CancelAll() {
	n := len(s.jobs)
	s.jobs = nil
	s.logger.Info("cancelled all scheduled jobs", "count", n)
}

// Len returns the number of registered jobs
func (s *Scheduler) Len() int {
	return len(s.jobs)
}

// Jobs returns a copy of the registry in registration order
func (s *Scheduler) Jobs() []Job {
	out := make([]Job, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = *j
	}
	return out
}

// RunPending runs every due job in registration order and reports how many ran.
// A failing or panicking job does not prevent the remaining jobs from running.
func (s *Scheduler) RunPending(ctx context.Context) int {
	if s.running {
		s.logger.Warn("run pending called while a previous run is in flight")
		return 0
	}
	s.running = true
	defer func() { s.running = false }()

	now := s.clock.Now()
	var due []*Job
	for _, j := range s.jobs {
		if !now.Before(j.NextRun) {
			due = append(due, j)
		}
	}

	for _, j := range due {
		if ctx.Err() != nil {
			break
		}
		s.runJob(ctx, j)
	}
	return len(due)
}

func (s *Scheduler) runJob(ctx context.Context, j *Job) {
	runID := uuid.NewString()
	logger := s.logger.With("project", j.Project, "action", j.Action, "run_id", runID)
	start := s.clock.Now()

	err := safeRun(WithRunID(ctx, runID), j.run)

	end := s.clock.Now()
	j.LastRun = end
	j.NextRun = end.Add(j.Interval)
	elapsed := end.Sub(start)

	switch {
	case errors.Is(err, ErrSkipped):
		logger.Debug("job skipped", "reason", err, "next_run", j.NextRun)
	case err != nil:
		logger.Error("job failed", "error", err, "elapsed", elapsed)
	default:
		logger.Debug("job finished", "elapsed", elapsed, "next_run", j.NextRun)
	}
	if s.observer != nil {
		s.observer(j, err, elapsed)
	}
}

func safeRun(ctx context.Context, run Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return run(ctx)
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the id of the job run ctx belongs to, or ""
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
