package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Config holds the cron schedules of the maintenance tasks
type Config struct {
	BacklogCheckSchedule string
	CacheSweepSchedule   string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger zerolog.Logger
	config Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, cfg Config, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(&logger))))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
// An empty schedule leaves that job unregistered.
func (s *Scheduler) Start() error {
	tasks := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"backlog check", s.config.BacklogCheckSchedule, s.jobs.CheckBacklog},
		{"cache sweep", s.config.CacheSweepSchedule, s.jobs.SweepCache},
	}

	for _, t := range tasks {
		if t.schedule == "" {
			continue
		}
		if _, err := s.cron.AddFunc(t.schedule, t.run); err != nil {
			return fmt.Errorf("scheduling %s job: %w", t.name, err)
		}
		s.logger.Info().Str("job", t.name).Str("schedule", t.schedule).Msg("scheduled job")
	}

	s.cron.Start()
	return nil
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
