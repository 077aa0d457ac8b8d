// Package cron provides the background ticking that drives
// consolidation's cross-process global narrative sync safety net: a
// long-lived agent process that never restarts still periodically
// reconciles session backlogs, in addition to the on-startup call the
// core performs itself.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// SyncFunc performs one guarded global narrative sync attempt. It returns
// the number of identities synced, or an error if the attempt failed
// (e.g. the NarrativeLock could not be acquired).
type SyncFunc func(ctx context.Context) (int, error)

// Config holds the dependencies for the scheduler.
type Config struct {
	Sync   SyncFunc
	Logger *slog.Logger
	// Interval between sync attempts; defaults to 24h if both Interval and
	// CronExpr are zero.
	Interval time.Duration
	// CronExpr, if set, takes precedence over Interval: the scheduler sleeps
	// until the next time the expression matches instead of ticking at a
	// fixed period.
	CronExpr string
}

// Scheduler periodically invokes Sync as a safety net for consolidation's
// global narrative sync.
type Scheduler struct {
	sync     SyncFunc
	logger   *slog.Logger
	interval time.Duration
	cronExpr string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new Scheduler with the given config.
func NewScheduler(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 && cfg.CronExpr == "" {
		interval = 24 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sync:     cfg.Sync,
		logger:   logger,
		interval: interval,
		cronExpr: cfg.CronExpr,
	}
}

// Start begins the scheduler loop in a background goroutine. It respects
// the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("consolidation sync scheduler started", "interval", s.interval, "cron_expr", s.cronExpr)
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("consolidation sync scheduler stopped")
}

// loop waits for the next due time and fires, until ctx is canceled.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		wait, err := s.nextWait()
		if err != nil {
			s.logger.Error("cron: failed to compute next sync time", "error", err)
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// nextWait returns the duration until the next sync attempt.
func (s *Scheduler) nextWait() (time.Duration, error) {
	if s.cronExpr == "" {
		return s.interval, nil
	}
	next, err := NextRunTime(s.cronExpr, time.Now())
	if err != nil {
		return 0, err
	}
	return time.Until(next), nil
}

// fire runs one sync attempt and logs the outcome.
func (s *Scheduler) fire(ctx context.Context) {
	if s.sync == nil {
		return
	}
	n, err := s.sync(ctx)
	if err != nil {
		s.logger.Warn("cron: global narrative sync attempt failed", "error", err)
		return
	}
	s.logger.Info("cron: global narrative sync completed", "identities_synced", n)
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
