package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/marcelsud/jobgate/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob(i int) job.Job {
	return job.Job{ID: fmt.Sprintf("job-%d", i), TenantID: "acme", QueueKey: "jobs:standard"}
}

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()

	const n, k = 5, 3
	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(ctx, "jobs:standard", testJob(i)))
	}

	for i := 0; i < k; i++ {
		j, err := q.Pop(ctx, "jobs:standard", time.Second)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("job-%d", i), j.ID)
	}

	depth, err := q.Depth(ctx, "jobs:standard")
	require.NoError(t, err)
	assert.Equal(t, int64(n-k), depth)
}

func TestQueue_Pop(t *testing.T) {
	ctx := context.Background()

	t.Run("timeout returns ErrQueueEmpty", func(t *testing.T) {
		q := NewQueue()
		_, err := q.Pop(ctx, "jobs:standard", 20*time.Millisecond)
		assert.ErrorIs(t, err, job.ErrQueueEmpty)
	})

	t.Run("blocked pop wakes on push", func(t *testing.T) {
		q := NewQueue()
		done := make(chan job.Job, 1)
		go func() {
			j, err := q.Pop(ctx, "jobs:standard", 2*time.Second)
			if err == nil {
				done <- j
			}
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, q.Push(ctx, "jobs:standard", testJob(1)))

		select {
		case j := <-done:
			assert.Equal(t, "job-1", j.ID)
		case <-time.After(time.Second):
			t.Fatal("pop did not wake up")
		}
	})

	t.Run("cancelled context is not reported as empty", func(t *testing.T) {
		q := NewQueue()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := q.Pop(cctx, "jobs:standard", time.Second)
		require.Error(t, err)
		assert.NotErrorIs(t, err, job.ErrQueueEmpty)
	})

	t.Run("keys are independent", func(t *testing.T) {
		q := NewQueue()
		require.NoError(t, q.Push(ctx, "jobs:priority", testJob(1)))
		_, err := q.Pop(ctx, "jobs:standard", 10*time.Millisecond)
		assert.ErrorIs(t, err, job.ErrQueueEmpty)
	})
}

func TestQueue_Peek(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(ctx, "jobs:standard", testJob(i)))
	}

	peeked, err := q.Peek(ctx, "jobs:standard", 10)
	require.NoError(t, err)
	require.Len(t, peeked, 3)
	assert.Equal(t, "job-0", peeked[0].ID)

	depth, err := q.Depth(ctx, "jobs:standard")
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth, "peek must not consume")

	for _, count := range []int{0, -1} {
		peeked, err := q.Peek(ctx, "jobs:standard", count)
		require.NoError(t, err)
		assert.Empty(t, peeked, "count %d", count)
	}
}

func TestQueue_Delayed(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	require.NoError(t, q.PushDelayed(ctx, "jobs:standard", testJob(1), 2*time.Second))

	moved, err := q.PromoteDue(ctx, "jobs:standard")
	require.NoError(t, err)
	assert.Equal(t, 0, moved)

	now = now.Add(2 * time.Second)
	moved, err = q.PromoteDue(ctx, "jobs:standard")
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	j, err := q.Pop(ctx, "jobs:standard", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-1", j.ID)
}
