package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Sweeper evicts expired entries and reports how many it removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Target is a named store swept on every run.
type Target struct {
	Name    string
	Sweeper Sweeper
}

// Scheduler periodically sweeps the in-memory cache and limiter. Redis-backed
// stores expire keys on their own and are not registered here.
type Scheduler struct {
	scheduler *gocron.Scheduler
	targets   []Target
	interval  time.Duration
	onSwept   func(name string, n int)
	logger    *zap.Logger
}

// New creates a new Scheduler. onSwept may be nil.
func New(interval time.Duration, logger *zap.Logger, onSwept func(name string, n int), targets ...Target) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onSwept == nil {
		onSwept = func(string, int) {}
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		targets:   targets,
		interval:  interval,
		onSwept:   onSwept,
		logger:    logger,
	}
}

// Start schedules the periodic sweep and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.targets) == 0 {
		s.logger.Info("scheduler: no in-memory stores configured; nothing to sweep")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	if _, err := s.scheduler.Every(interval).WaitForSchedule().Do(s.RunOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce sweeps every target immediately.
func (s *Scheduler) RunOnce() {
	now := time.Now()
	for _, t := range s.targets {
		removed := t.Sweeper.Sweep(now)
		s.onSwept(t.Name, removed)
		if removed > 0 {
			s.logger.Debug("scheduler: swept expired entries",
				zap.String("store", t.Name),
				zap.Int("removed", removed))
		}
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
