package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/jobgate/job"
)

/* In-process implementation of job.Queue
 * Keeps the list contract of the Redis queue (FIFO per key, blocking pop, peek, depth)
 * Nothing survives a restart; meant for tests and local runs
 */

type delayed struct {
	job   job.Job
	dueAt time.Time
}

type Queue struct {
	mu      sync.Mutex
	lists   map[string][]job.Job
	delayed map[string][]delayed
	signal  map[string]chan struct{}
	now     func() time.Time
}

// NewQueue creates an empty in-memory queue
func NewQueue() *Queue {
	return &Queue{
		lists:   make(map[string][]job.Job),
		delayed: make(map[string][]delayed),
		signal:  make(map[string]chan struct{}),
		now:     time.Now,
	}
}

// notifier returns the channel closed on the next push to key; caller holds mu
func (q *Queue) notifier(key string) chan struct{} {
	ch, ok := q.signal[key]
	if !ok {
		ch = make(chan struct{})
		q.signal[key] = ch
	}
	return ch
}

// wake releases every Pop waiting on key; caller holds mu
func (q *Queue) wake(key string) {
	if ch, ok := q.signal[key]; ok {
		close(ch)
		delete(q.signal, key)
	}
}

// Push appends a job to the list at key
func (q *Queue) Push(ctx context.Context, key string, j job.Job) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pushing job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lists[key] = append(q.lists[key], j)
	q.wake(key)
	return nil
}

// PushDelayed parks a job until delay has elapsed
func (q *Queue) PushDelayed(ctx context.Context, key string, j job.Job, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pushing delayed job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed[key] = append(q.delayed[key], delayed{job: j, dueAt: q.now().Add(delay)})
	return nil
}

// PromoteDue moves due delayed jobs onto the list at key
func (q *Queue) PromoteDue(ctx context.Context, key string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var keep []delayed
	moved := 0
	for _, d := range q.delayed[key] {
		if d.dueAt.After(now) {
			keep = append(keep, d)
			continue
		}
		q.lists[key] = append(q.lists[key], d.job)
		moved++
	}
	q.delayed[key] = keep
	if moved > 0 {
		q.wake(key)
	}
	return moved, nil
}

// Pop blocks up to timeout for the oldest job at key
func (q *Queue) Pop(ctx context.Context, key string, timeout time.Duration) (job.Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if list := q.lists[key]; len(list) > 0 {
			j := list[0]
			q.lists[key] = list[1:]
			q.mu.Unlock()
			return j, nil
		}
		wait := q.notifier(key)
		q.mu.Unlock()

		select {
		case <-wait:
		case <-timer.C:
			return job.Job{}, job.ErrQueueEmpty
		case <-ctx.Done():
			return job.Job{}, fmt.Errorf("popping job: %w", ctx.Err())
		}
	}
}

// Peek returns up to count jobs, oldest first
func (q *Queue) Peek(ctx context.Context, key string, count int) ([]job.Job, error) {
	if count <= 0 {
		return nil, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.lists[key]
	if count > len(list) {
		count = len(list)
	}
	out := make([]job.Job, count)
	copy(out, list[:count])
	return out, nil
}

// Depth returns the number of jobs waiting at key
func (q *Queue) Depth(ctx context.Context, key string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.lists[key])), nil
}

// Close releases nothing; present to satisfy job.Queue
func (q *Queue) Close(ctx context.Context) error {
	return nil
}
