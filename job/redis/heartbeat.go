package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const heartbeatTTL = 60 * time.Second

// WorkerHeartbeat is the liveness record a worker refreshes while it runs
type WorkerHeartbeat struct {
	WorkerID      string    `json:"worker_id"`
	QueueKey      string    `json:"queue_key"`
	Status        string    `json:"status"` // "idle", "executing"
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// SetWorkerHeartbeat stores a worker's heartbeat with a 60 second TTL.
// A worker that stops refreshing drops out of ActiveWorkers once the key expires.
func (q *Queue) SetWorkerHeartbeat(ctx context.Context, workerID, queueKey, status string) error {
	hb := WorkerHeartbeat{
		WorkerID:      workerID,
		QueueKey:      queueKey,
		Status:        status,
		LastHeartbeat: time.Now().UTC(),
	}

	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	if err := q.client.Set(ctx, heartbeatKey(queueKey, workerID), data, heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("setting heartbeat: %w", err)
	}
	return nil
}

// RemoveWorkerHeartbeat deletes the heartbeat of a worker that exits cleanly
func (q *Queue) RemoveWorkerHeartbeat(ctx context.Context, workerID, queueKey string) error {
	if err := q.client.Del(ctx, heartbeatKey(queueKey, workerID)).Err(); err != nil {
		return fmt.Errorf("removing heartbeat: %w", err)
	}
	return nil
}

// ActiveWorkers lists the live workers of a queue key
func (q *Queue) ActiveWorkers(ctx context.Context, queueKey string) ([]WorkerHeartbeat, error) {
	var workers []WorkerHeartbeat

	var cursor uint64
	for {
		keys, next, err := q.client.Scan(ctx, cursor, heartbeatKey(queueKey, "*"), 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning worker keys: %w", err)
		}

		for _, key := range keys {
			data, err := q.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				// expired between scan and get
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("getting worker heartbeat: %w", err)
			}

			var hb WorkerHeartbeat
			if err := json.Unmarshal([]byte(data), &hb); err != nil {
				continue
			}
			workers = append(workers, hb)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return workers, nil
}

func heartbeatKey(queueKey, workerID string) string {
	return fmt.Sprintf("worker:heartbeat:%s:%s", queueKey, workerID)
}
