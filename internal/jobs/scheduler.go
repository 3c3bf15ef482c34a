// Package jobs runs the daily reset on a cron schedule in the configured
// timezone and serializes it with manual triggers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/atomickids/internal/streak"
)

// ErrRunInProgress is returned by Trigger while another run is executing.
var ErrRunInProgress = errors.New("daily reset already running")

// Runner executes one daily reset.
type Runner interface {
	Run(ctx context.Context) (*streak.Summary, error)
}

// Scheduler owns the single in-flight daily reset of this process.
type Scheduler struct {
	runner   Runner
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	timeout  time.Duration
	logger   *slog.Logger

	running sync.Mutex

	mu         sync.Mutex
	ctx        context.Context
	onComplete func(*streak.Summary)
}

type Option func(*Scheduler)

// WithTimeout bounds each run, scheduled or triggered.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// OnComplete registers a hook called after every run with its summary.
func OnComplete(fn func(*streak.Summary)) Option {
	return func(s *Scheduler) { s.onComplete = fn }
}

// NewScheduler parses spec (standard five-field cron) and schedules the
// runner in loc. The schedule is not started until Start.
func NewScheduler(runner Runner, spec string, loc *time.Location, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		runner:   runner,
		schedule: schedule,
		loc:      loc,
		timeout:  10 * time.Minute,
		logger:   logger,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.scheduled))
	return s, nil
}

// Start begins firing the schedule. Scheduled runs derive from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("daily reset scheduled", "next", s.Next(time.Now()))
}

// Stop stops the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the first scheduled run after t, in the scheduler's zone.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Trigger runs the reset now unless one is already running. The run is
// detached from ctx's cancellation, so a client that disconnects does not
// abort a sweep halfway; it is bounded by the scheduler timeout instead.
func (s *Scheduler) Trigger(ctx context.Context) (*streak.Summary, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) (*streak.Summary, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	sum, err := s.runner.Run(ctx)
	if sum != nil && s.onComplete != nil {
		s.onComplete(sum)
	}
	return sum, err
}

func (s *Scheduler) scheduled() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	sum, err := s.run(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("scheduled daily reset skipped", "reason", err)
	case err != nil:
		s.logger.Error("scheduled daily reset failed", "error", err)
	default:
		s.logger.Info("scheduled daily reset done", "run_id", sum.RunID, "status", sum.StatusCode())
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
