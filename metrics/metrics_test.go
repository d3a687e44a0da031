package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/budget"
	"github.com/marcelsud/jobgate/job"
	"github.com/marcelsud/jobgate/job/memory"
	jobredis "github.com/marcelsud/jobgate/job/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHeartbeats map[string][]jobredis.WorkerHeartbeat

func (f fakeHeartbeats) ActiveWorkers(_ context.Context, key string) ([]jobredis.WorkerHeartbeat, error) {
	if key == "broken" {
		return nil, errors.New("connection refused")
	}
	return f[key], nil
}

func seededQueue(t *testing.T) *memory.Queue {
	t.Helper()
	q := memory.NewQueue()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, "jobs:default", job.Job{ID: id, TenantID: "acme"}))
	}
	require.NoError(t, q.Push(ctx, "jobs:bulk", job.Job{ID: "d", TenantID: "acme"}))
	return q
}

func TestQueueCollector(t *testing.T) {
	ctx := context.Background()

	t.Run("success - depths per key", func(t *testing.T) {
		c := NewQueueCollector(seededQueue(t), nil, "jobs:default", "jobs:bulk", "jobs:empty")

		depths, err := c.QueueDepths(ctx)

		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"jobs:default": 3, "jobs:bulk": 1, "jobs:empty": 0}, depths)
	})

	t.Run("success - workers grouped by key", func(t *testing.T) {
		hb := fakeHeartbeats{
			"jobs:default": {
				{WorkerID: "w1", QueueKey: "jobs:default", Status: "idle", LastHeartbeat: time.Now()},
				{WorkerID: "w2", QueueKey: "jobs:default", Status: "executing", LastHeartbeat: time.Now()},
			},
		}
		c := NewQueueCollector(seededQueue(t), hb, "jobs:default", "jobs:bulk")

		snap, err := c.Collect(ctx)

		require.NoError(t, err)
		assert.Len(t, snap.Workers["jobs:default"], 2)
		assert.Empty(t, snap.Workers["jobs:bulk"])
		assert.EqualValues(t, 3, snap.QueueDepths["jobs:default"])
		assert.False(t, snap.Timestamp.IsZero())
	})

	t.Run("success - no heartbeat source", func(t *testing.T) {
		c := NewQueueCollector(seededQueue(t), nil, "jobs:default")

		workers, err := c.ActiveWorkers(ctx)

		require.NoError(t, err)
		assert.Empty(t, workers)
	})

	t.Run("error - heartbeat lookup fails", func(t *testing.T) {
		c := NewQueueCollector(seededQueue(t), fakeHeartbeats{}, "broken")

		_, err := c.Collect(ctx)

		assert.Error(t, err)
	})
}

func scrape(t *testing.T, oe *OTelExporter) string {
	t.Helper()
	srv := httptest.NewServer(oe.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// sample returns the first sample line of a metric family that carries every label
func sample(body, prefix string, labels ...string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "#") || !strings.HasPrefix(line, prefix) {
			continue
		}
		matched := true
		for _, l := range labels {
			if !strings.Contains(line, l) {
				matched = false
				break
			}
		}
		if matched {
			return line
		}
	}
	return ""
}

func TestOTelExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("success - counters from observers", func(t *testing.T) {
		oe, err := NewOTelExporter(nil)
		require.NoError(t, err)
		defer oe.Shutdown(ctx)

		oe.ObserveDecision(ctx, budget.Decision{Outcome: budget.Block, Reason: budget.OverGrace, Lookup: budget.FreshHit})
		oe.ObserveOutcome(ctx, job.Completed, job.ReasonCompleted)
		oe.ObserveOutcome(ctx, job.Completed, job.ReasonCompleted)
		oe.ObserveAlert(ctx, alert.NewRecord("acme", alert.ClassGraceExceeded, "over", 1.2), alert.ResultDelivered)

		body := scrape(t, oe)

		line := sample(body, "jobgate_jobs_outcomes", `status="completed"`)
		require.NotEmpty(t, line, body)
		assert.True(t, strings.HasSuffix(line, " 2"), line)

		assert.NotEmpty(t, sample(body, "jobgate_admission_decisions", `outcome="block"`, `reason="over-grace"`), body)
		assert.NotEmpty(t, sample(body, "jobgate_alerts", `class="grace-exceeded"`, `result="delivered"`), body)
	})

	t.Run("success - gauges from the collector", func(t *testing.T) {
		oe, err := NewOTelExporter(NewQueueCollector(seededQueue(t), nil, "jobs:default"))
		require.NoError(t, err)
		defer oe.Shutdown(ctx)

		body := scrape(t, oe)

		line := sample(body, "jobgate_queue_depth", `queue_key="jobs:default"`)
		require.NotEmpty(t, line, body)
		assert.True(t, strings.HasSuffix(line, " 3"), line)
	})
}
