// Package scheduler runs the periodic rollover of recurring events.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "pdxevents/internal/log"
	"pdxevents/internal/recurrence"
)

// Roller moves stale recurring events onto their next occurrence.
type Roller interface {
	RollForward(ctx context.Context, today recurrence.Date) (int, error)
}

// Scheduler triggers Roller on a cron schedule evaluated in a fixed zone.
type Scheduler struct {
	roller Roller
	spec   string
	loc    *time.Location
	now    func() time.Time
	cron   *cron.Cron

	mu      sync.Mutex
	lastRun time.Time
	started bool
}

// New validates spec (standard 5-field cron) and prepares a scheduler.
// now may be nil, in which case time.Now is used.
func New(r Roller, spec string, loc *time.Location, now func() time.Time) (*Scheduler, error) {
	if r == nil {
		return nil, errors.New("scheduler: roller is nil")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}

	logger := cronLogger{}
	return &Scheduler{
		roller: r,
		spec:   spec,
		loc:    loc,
		now:    now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}, nil
}

// Today is the current calendar date in the scheduler's zone.
func (s *Scheduler) Today() recurrence.Date {
	return recurrence.DateOf(s.now().In(s.loc))
}

// RunOnce performs a single rollover for today.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	today := s.Today()
	moved, err := s.roller.RollForward(ctx, today)
	if err != nil {
		appLog.Error("scheduled rollover failed", err, "today", today)
		return moved, err
	}

	s.mu.Lock()
	s.lastRun = s.now()
	s.mu.Unlock()
	return moved, nil
}

// LastRun reports when RunOnce last succeeded.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Start runs a catch-up rollover, then schedules further runs until ctx is
// canceled. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler: already started")
	}
	s.started = true
	s.mu.Unlock()

	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	if _, err := s.cron.AddFunc(s.spec, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("scheduler: adding job: %w", err)
	}
	s.cron.Start()
	appLog.Info("rollover scheduler started", "schedule", s.spec, "timezone", s.loc.String(), "next", s.Next())

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		appLog.Info("rollover scheduler stopped")
	}()
	return nil
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger routes cron's own logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
