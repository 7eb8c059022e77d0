// Package scheduler runs named jobs on weekly or interval triggers from a
// single background goroutine.
package scheduler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/metrics"
	"digest-backend/internal/shared/telemetry"
)

var (
	// ErrJobExists is returned by Schedule when the id is taken and
	// replace is false.
	ErrJobExists = errors.Mark(errors.New("job already exists"), faults.ErrScheduler)
	// ErrJobNotFound is returned by RunNow and Remove for unknown ids.
	ErrJobNotFound = errors.Mark(errors.New("job not found"), faults.ErrScheduler)
)

// Action is the body bound to a job. It must be safe to run concurrently
// with itself since RunNow can overlap a scheduled fire.
type Action func(ctx context.Context) error

// JobInfo is a read-only view of a registered job.
type JobInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	NextRunTime time.Time `json:"nextRunTime"`
	Trigger     string    `json:"trigger"`
}

type job struct {
	id      string
	name    string
	trigger Trigger
	action  Action
	next    time.Time
}

// Scheduler is a registry of jobs plus the goroutine that fires them.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	wake   chan struct{}
	now    func() time.Time
	log    *zap.SugaredLogger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a stopped Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs: make(map[string]*job),
		wake: make(chan struct{}, 1),
		now:  time.Now,
		log:  telemetry.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background loop. It is a no-op when already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
	s.log.Infow("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels the loop and waits for an in-flight fire to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Infow("scheduler stopped")
}

// Schedule registers a job. An existing id is replaced when replace is
// true and rejected with ErrJobExists otherwise.
func (s *Scheduler) Schedule(id, name string, trigger Trigger, action Action, replace bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return faults.Invalid("job id is required")
	}
	if trigger == nil || action == nil {
		return faults.Invalid("job trigger and action are required")
	}
	if name == "" {
		name = id
	}

	now := s.now()
	// Interval jobs without a start stay on a grid anchored at registration.
	if iv, ok := trigger.(Interval); ok && iv.Start.IsZero() {
		iv.Start = now
		trigger = iv
	}

	s.mu.Lock()
	if _, ok := s.jobs[id]; ok && !replace {
		s.mu.Unlock()
		return errors.Wrapf(ErrJobExists, "schedule %s", id)
	}
	j := &job{id: id, name: name, trigger: trigger, action: action, next: trigger.NextFireAfter(now)}
	s.jobs[id] = j
	s.mu.Unlock()

	s.signal()
	s.log.Infow("job scheduled", "job_id", id, "trigger", trigger.String(), "next_run", j.next)
	return nil
}

// Remove deregisters a job.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	if _, ok := s.jobs[id]; !ok {
		s.mu.Unlock()
		return errors.Wrapf(ErrJobNotFound, "remove %s", id)
	}
	delete(s.jobs, id)
	s.mu.Unlock()

	s.signal()
	s.log.Infow("job removed", "job_id", id)
	return nil
}

// List returns a snapshot of the registry sorted by id.
func (s *Scheduler) List() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobInfo{ID: j.id, Name: j.name, NextRunTime: j.next, Trigger: j.trigger.String()})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// RunNow runs a job's action on the caller's goroutine. The job's next run
// time is left alone.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	var action Action
	var name string
	if ok {
		action, name = j.action, j.name
	}
	s.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrJobNotFound, "run %s", id)
	}
	return s.execute(ctx, id, name, action, "manual")
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		var timer *time.Timer
		var fire <-chan time.Time
		if next, ok := s.earliest(); ok {
			d := next.Sub(s.now())
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-s.wake:
			stopTimer(timer)
		case <-fire:
			s.runDue(ctx)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (s *Scheduler) earliest() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first time.Time
	for _, j := range s.jobs {
		if j.next.IsZero() {
			continue
		}
		if first.IsZero() || j.next.Before(first) {
			first = j.next
		}
	}
	return first, !first.IsZero()
}

type dueJob struct {
	id     string
	name   string
	action Action
	at     time.Time
}

// runDue advances every due job to its next fire time, then runs the
// actions one at a time without holding the registry lock.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	var due []dueJob
	for _, j := range s.jobs {
		if j.next.IsZero() || j.next.After(now) {
			continue
		}
		due = append(due, dueJob{id: j.id, name: j.name, action: j.action, at: j.next})
		j.next = j.trigger.NextFireAfter(now)
	}
	s.mu.Unlock()

	sort.Slice(due, func(a, b int) bool {
		if !due[a].at.Equal(due[b].at) {
			return due[a].at.Before(due[b].at)
		}
		return due[a].id < due[b].id
	})
	for _, d := range due {
		if ctx.Err() != nil {
			return
		}
		_ = s.execute(ctx, d.id, d.name, d.action, "scheduled")
	}
}

// execute runs action, turning a panic into an error. Failures are logged
// and counted, never propagated to the loop.
func (s *Scheduler) execute(ctx context.Context, id, name string, action Action, cause string) (err error) {
	start := time.Now()
	metrics.IncJobRuns()
	defer func() {
		if rec := recover(); rec != nil {
			err = faults.FromPanic(rec)
		}
		if err != nil {
			metrics.IncJobFailures()
			s.log.Errorw("job failed", "job_id", id, "name", name, "cause", cause, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
			return
		}
		s.log.Infow("job completed", "job_id", id, "name", name, "cause", cause, "duration_ms", time.Since(start).Milliseconds())
	}()
	return action(ctx)
}
