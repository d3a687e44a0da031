//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/jobgate/job"
	"github.com/marcelsud/jobgate/job/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer holds the Redis testcontainer and its address
type RedisContainer struct {
	Container *testcontainersredis.RedisContainer
	Addr      string
}

// SetupRedisContainer starts a Redis testcontainer
func SetupRedisContainer(t *testing.T, ctx context.Context) (*RedisContainer, func()) {
	t.Helper()

	container, err := testcontainersredis.Run(ctx,
		"redis:7-alpine",
		testcontainersredis.WithLogLevel(testcontainersredis.LogLevelVerbose),
	)
	require.NoError(t, err, "failed to start Redis container")

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")
	addr = strings.TrimPrefix(addr, "redis://")

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}

	return &RedisContainer{Container: container, Addr: addr}, cleanup
}

// CreateTestQueue creates a queue connected to the test container
func CreateTestQueue(t *testing.T, addr string) *redis.Queue {
	t.Helper()

	q, err := redis.NewQueue(addr, "", 0)
	require.NoError(t, err, "failed to create Redis queue")
	return q
}

// NewTestJob builds a valid job for the given queue key
func NewTestJob(t *testing.T, index int, queueKey string) job.Job {
	t.Helper()
	return job.Job{
		ID:          fmt.Sprintf("test-job-%d-%d", index, time.Now().UnixNano()),
		TenantID:    "acme",
		QueueKey:    queueKey,
		Type:        "report.generate",
		Payload:     []byte(`{"report":"monthly"}`),
		SubmittedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

// KeyExists checks if a Redis key exists
func KeyExists(t *testing.T, addr string, key string) bool {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer client.Close()

	n, err := client.Exists(context.Background(), key).Result()
	require.NoError(t, err)
	return n > 0
}
