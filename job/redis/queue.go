package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/marcelsud/jobgate/job"
	"github.com/redis/go-redis/v9"
)

/* Redis list implementation of job.Queue
 * LPUSH on submit, BRPOP on consume: each list is FIFO and each job is handed to one consumer
 * Retries wait in a sorted set ({key}:delayed) scored by due time until promoted back onto the list
 */

const delayedSuffix = "delayed"

// promoteScript moves every member of the delayed set whose score is <= now onto the list
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, member in ipairs(due) do
	redis.call('ZREM', KEYS[2], member)
	redis.call('LPUSH', KEYS[1], member)
end
return #due
`)

type Queue struct {
	client *redis.Client
}

// NewQueue connects to Redis and returns a queue backed by it
func NewQueue(addr, password string, db int) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Queue{client: client}, nil
}

// NewQueueFromClient wraps an existing client
func NewQueueFromClient(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Push serializes j and prepends it to the list at key
func (q *Queue) Push(ctx context.Context, key string, j job.Job) error {
	data, err := job.Marshal(j)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("pushing job: %w: %w", job.ErrTransient, err)
	}
	return nil
}

// PushDelayed parks j in the delayed set until now+delay
func (q *Queue) PushDelayed(ctx context.Context, key string, j job.Job, delay time.Duration) error {
	data, err := job.Marshal(j)
	if err != nil {
		return err
	}
	dueAt := time.Now().Add(delay).UnixMilli()
	err = q.client.ZAdd(ctx, delayedKey(key), redis.Z{Score: float64(dueAt), Member: data}).Err()
	if err != nil {
		return fmt.Errorf("pushing delayed job: %w: %w", job.ErrTransient, err)
	}
	return nil
}

// PromoteDue moves due delayed jobs back onto the list at key
func (q *Queue) PromoteDue(ctx context.Context, key string) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.client, []string{key, delayedKey(key)}, now).Int()
	if err != nil {
		return 0, fmt.Errorf("promoting delayed jobs: %w: %w", job.ErrTransient, err)
	}
	return n, nil
}

// Pop blocks up to timeout for the oldest job at key
func (q *Queue) Pop(ctx context.Context, key string, timeout time.Duration) (job.Job, error) {
	res, err := q.client.BRPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return job.Job{}, job.ErrQueueEmpty
	}
	if err != nil {
		if ctx.Err() != nil {
			return job.Job{}, fmt.Errorf("popping job: %w", ctx.Err())
		}
		return job.Job{}, fmt.Errorf("popping job: %w: %w", job.ErrTransient, err)
	}
	// BRPOP answers [key, value]
	if len(res) != 2 {
		return job.Job{}, fmt.Errorf("popping job: unexpected reply length %d", len(res))
	}
	return job.Unmarshal([]byte(res[1]))
}

// Peek returns up to count jobs, oldest first, without removing them
func (q *Queue) Peek(ctx context.Context, key string, count int) ([]job.Job, error) {
	if count <= 0 {
		return nil, nil
	}
	// the oldest entries sit at the tail of the list
	raw, err := q.client.LRange(ctx, key, int64(-count), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("peeking queue: %w: %w", job.ErrTransient, err)
	}

	jobs := make([]job.Job, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		j, err := job.Unmarshal([]byte(raw[i]))
		if err != nil {
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Depth returns the length of the list at key
func (q *Queue) Depth(ctx context.Context, key string) (int64, error) {
	n, err := q.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("reading queue depth: %w: %w", job.ErrTransient, err)
	}
	return n, nil
}

// Close closes the Redis connection
func (q *Queue) Close(ctx context.Context) error {
	return q.client.Close()
}

// GetClient returns the underlying Redis client
func (q *Queue) GetClient() *redis.Client {
	return q.client
}

func delayedKey(key string) string {
	return fmt.Sprintf("%s:%s", key, delayedSuffix)
}
