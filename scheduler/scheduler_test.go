package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/job"
	"github.com/marcelsud/jobgate/job/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	records []alert.Record
}

func (p *recordingPublisher) Publish(r alert.Record) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r)
	return true
}

type countingSweeper struct {
	maxAge time.Duration
	calls  int
}

func (s *countingSweeper) Sweep(maxAge time.Duration) int {
	s.maxAge = maxAge
	s.calls++
	return 2
}

func backlog(t *testing.T, n int) *memory.Queue {
	t.Helper()
	q := memory.NewQueue()
	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(context.Background(), "jobs:default", job.Job{ID: "j", TenantID: "acme"}))
	}
	return q
}

func TestJobs_CheckBacklog(t *testing.T) {
	t.Run("success - alerts when the backlog passes the threshold", func(t *testing.T) {
		pub := &recordingPublisher{}
		jobs := NewJobs(backlog(t, 5), []string{"jobs:default"}, 3, pub, &countingSweeper{}, time.Hour, zerolog.Nop())

		jobs.CheckBacklog()

		require.Len(t, pub.records, 1)
		assert.Equal(t, alert.PlatformTenant, pub.records[0].TenantID)
		assert.Equal(t, alert.ClassInfraDegraded, pub.records[0].Class)
		assert.Contains(t, pub.records[0].Message, "jobs:default")
	})

	t.Run("success - quiet under the threshold", func(t *testing.T) {
		pub := &recordingPublisher{}
		jobs := NewJobs(backlog(t, 3), []string{"jobs:default"}, 3, pub, &countingSweeper{}, time.Hour, zerolog.Nop())

		jobs.CheckBacklog()

		assert.Empty(t, pub.records)
	})

	t.Run("success - disabled with a zero threshold", func(t *testing.T) {
		pub := &recordingPublisher{}
		jobs := NewJobs(backlog(t, 10), []string{"jobs:default"}, 0, pub, &countingSweeper{}, time.Hour, zerolog.Nop())

		jobs.CheckBacklog()

		assert.Empty(t, pub.records)
	})
}

func TestJobs_SweepCache(t *testing.T) {
	sweeper := &countingSweeper{}
	jobs := NewJobs(backlog(t, 0), nil, 0, &recordingPublisher{}, sweeper, 24*time.Hour, zerolog.Nop())

	jobs.SweepCache()

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 24*time.Hour, sweeper.maxAge)
}

func TestScheduler(t *testing.T) {
	jobs := NewJobs(backlog(t, 0), nil, 0, &recordingPublisher{}, &countingSweeper{}, time.Hour, zerolog.Nop())

	t.Run("success - registers configured jobs", func(t *testing.T) {
		s := NewScheduler(jobs, Config{BacklogCheckSchedule: "@every 1m", CacheSweepSchedule: "*/10 * * * *"}, zerolog.Nop())

		require.NoError(t, s.Start())
		defer s.Stop()

		assert.Equal(t, 2, s.Entries())
	})

	t.Run("success - empty schedule is skipped", func(t *testing.T) {
		s := NewScheduler(jobs, Config{CacheSweepSchedule: "@every 5m"}, zerolog.Nop())

		require.NoError(t, s.Start())
		defer s.Stop()

		assert.Equal(t, 1, s.Entries())
	})

	t.Run("error - invalid schedule", func(t *testing.T) {
		s := NewScheduler(jobs, Config{BacklogCheckSchedule: "every now and then"}, zerolog.Nop())

		err := s.Start()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "backlog check")
	})
}
