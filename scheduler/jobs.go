package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/job"
	"github.com/rs/zerolog"
)

// Sweeper evicts cache entries older than maxAge
type Sweeper interface {
	Sweep(maxAge time.Duration) int
}

// Jobs holds the maintenance tasks run on a schedule
type Jobs struct {
	queue        job.Inspector
	keys         []string
	backlogDepth int64
	alerts       alert.Publisher
	cache        Sweeper
	staleMaxAge  time.Duration
	logger       zerolog.Logger
}

// NewJobs creates the maintenance tasks. A backlogDepth of zero disables the backlog check.
func NewJobs(
	queue job.Inspector,
	keys []string,
	backlogDepth int64,
	alerts alert.Publisher,
	cache Sweeper,
	staleMaxAge time.Duration,
	logger zerolog.Logger,
) *Jobs {
	return &Jobs{
		queue:        queue,
		keys:         keys,
		backlogDepth: backlogDepth,
		alerts:       alerts,
		cache:        cache,
		staleMaxAge:  staleMaxAge,
		logger:       logger,
	}
}

// CheckBacklog raises a platform infra-degraded alert for every queue deeper than the threshold
func (j *Jobs) CheckBacklog() {
	if j.backlogDepth <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, key := range j.keys {
		depth, err := j.queue.Depth(ctx, key)
		if err != nil {
			j.logger.Warn().Err(err).Str("queue_key", key).Msg("backlog check: reading depth")
			j.alerts.Publish(alert.NewRecord(alert.PlatformTenant, alert.ClassInfraDegraded,
				fmt.Sprintf("queue %s unreachable: %v", key, err), 0))
			continue
		}
		if depth > j.backlogDepth {
			j.logger.Warn().Str("queue_key", key).Int64("depth", depth).Msg("queue backlog over threshold")
			j.alerts.Publish(alert.NewRecord(alert.PlatformTenant, alert.ClassInfraDegraded,
				fmt.Sprintf("queue %s has %d jobs waiting (threshold %d)", key, depth, j.backlogDepth),
				float64(depth)/float64(j.backlogDepth)))
		}
	}
}

// SweepCache evicts budget entries that no longer qualify as stale fallbacks
func (j *Jobs) SweepCache() {
	if n := j.cache.Sweep(j.staleMaxAge); n > 0 {
		j.logger.Info().Int("evicted", n).Msg("budget cache swept")
	}
}
