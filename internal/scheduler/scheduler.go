package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// NextFunc returns the first fire time strictly after t.
type NextFunc func(t time.Time) time.Time

// Job is one scheduled task.
type Job struct {
	Name string
	Next NextFunc
	Run  func(ctx context.Context, now time.Time) error
}

// Daily fires every day at hour:minute in t's location.
func Daily(hour, minute int) NextFunc {
	return func(t time.Time) time.Time {
		next := time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
		if !next.After(t) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// Monthly fires on day of every month at hour in t's location.
// day must not exceed 28.
func Monthly(day, hour int) NextFunc {
	return func(t time.Time) time.Time {
		next := time.Date(t.Year(), t.Month(), day, hour, 0, 0, 0, t.Location())
		if !next.After(t) {
			next = next.AddDate(0, 1, 0)
		}
		return next
	}
}

// Scheduler fires jobs on a clock.
type Scheduler struct {
	jobs   []Job
	clock  quartz.Clock
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. A nil clock uses the real clock and a nil
// logger uses slog.Default().
func New(clock quartz.Clock, logger *slog.Logger, jobs ...Job) *Scheduler {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:   jobs,
		clock:  clock,
		logger: logger,
	}
}

// Start begins a loop per job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(job)
	}

	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels the loops and waits for running jobs to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	for {
		now := s.clock.Now()
		next := job.Next(now)
		s.logger.Info("job scheduled", "job", job.Name, "at", next.Format(time.DateTime))

		timer := s.clock.NewTimer(next.Sub(now), "scheduler", job.Name)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.fire(job)
	}
}

func (s *Scheduler) fire(job Job) {
	start := s.clock.Now()
	if err := job.Run(s.ctx, start); err != nil {
		s.logger.Error("job failed",
			"job", job.Name,
			"error", err,
			"duration", s.clock.Since(start),
		)
		return
	}
	s.logger.Info("job complete", "job", job.Name, "duration", s.clock.Since(start))
}
