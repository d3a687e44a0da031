package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/jobgate/job"
	jobredis "github.com/marcelsud/jobgate/job/redis"
)

// HeartbeatLister lists the live workers of a queue key
type HeartbeatLister interface {
	ActiveWorkers(ctx context.Context, queueKey string) ([]jobredis.WorkerHeartbeat, error)
}

// QueueCollector implements Collector over a queue and its worker heartbeats
type QueueCollector struct {
	queue      job.Inspector
	heartbeats HeartbeatLister
	keys       []string
}

// NewQueueCollector creates a collector for keys. heartbeats may be nil when workers run in-process.
func NewQueueCollector(queue job.Inspector, heartbeats HeartbeatLister, keys ...string) *QueueCollector {
	return &QueueCollector{
		queue:      queue,
		heartbeats: heartbeats,
		keys:       keys,
	}
}

// Collect gathers queue depths and workers
func (c *QueueCollector) Collect(ctx context.Context) (Snapshot, error) {
	depths, err := c.QueueDepths(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting queue depths: %w", err)
	}

	workers, err := c.ActiveWorkers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Snapshot{
		QueueDepths: depths,
		Workers:     workers,
		Timestamp:   time.Now(),
	}, nil
}

// QueueDepths returns the depth of every configured key
func (c *QueueCollector) QueueDepths(ctx context.Context) (map[string]int64, error) {
	depths := make(map[string]int64, len(c.keys))
	for _, key := range c.keys {
		depth, err := c.queue.Depth(ctx, key)
		if err != nil {
			// Continue even if one key fails
			continue
		}
		depths[key] = depth
	}
	return depths, nil
}

// ActiveWorkers returns the heartbeating workers of every configured key
func (c *QueueCollector) ActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error) {
	workers := make(map[string][]WorkerInfo, len(c.keys))
	if c.heartbeats == nil {
		return workers, nil
	}

	for _, key := range c.keys {
		beats, err := c.heartbeats.ActiveWorkers(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("listing workers of %s: %w", key, err)
		}
		for _, hb := range beats {
			workers[key] = append(workers[key], WorkerInfo{
				WorkerID:      hb.WorkerID,
				QueueKey:      hb.QueueKey,
				Status:        hb.Status,
				LastHeartbeat: hb.LastHeartbeat,
			})
		}
	}
	return workers, nil
}
