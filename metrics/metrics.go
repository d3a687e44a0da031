package metrics

import (
	"context"
	"time"
)

// Snapshot is the current state of the job queues
type Snapshot struct {
	// QueueDepths maps queue key to the number of waiting jobs
	QueueDepths map[string]int64 `json:"queue_depths"`

	// Workers maps queue key to its live workers
	Workers map[string][]WorkerInfo `json:"workers"`

	// Timestamp when the snapshot was taken
	Timestamp time.Time `json:"timestamp"`
}

// WorkerInfo represents information about an active worker.
type WorkerInfo struct {
	WorkerID string `json:"worker_id"`

	QueueKey string `json:"queue_key"`

	// Status is the current status of the worker ("idle", "executing")
	Status string `json:"status"`

	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Collector gathers queue state for the gauges
type Collector interface {
	// Collect gathers a full snapshot
	Collect(ctx context.Context) (Snapshot, error)

	// QueueDepths returns the number of waiting jobs per queue key
	QueueDepths(ctx context.Context) (map[string]int64, error)

	// ActiveWorkers returns the live workers per queue key
	ActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error)
}
