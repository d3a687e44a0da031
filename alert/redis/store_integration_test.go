//go:build integration

package redis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/jobgate/alert"
	alertredis "github.com/marcelsud/jobgate/alert/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	defer container.Terminate(ctx)

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: strings.TrimPrefix(addr, "redis://")})
	defer client.Close()

	t.Run("set once per window then re-arms", func(t *testing.T) {
		d := alert.NewDeduplicator(alertredis.NewStore(client), time.Second, zerolog.Nop())

		assert.True(t, d.ShouldSend(ctx, "acme", alert.ClassThresholdCrossed))
		assert.False(t, d.ShouldSend(ctx, "acme", alert.ClassThresholdCrossed))
		assert.True(t, d.ShouldSend(ctx, "acme", alert.ClassGraceExceeded))
		assert.True(t, d.ShouldSend(ctx, "globex", alert.ClassThresholdCrossed))

		ttl, err := client.TTL(ctx, alert.DedupKey("acme", alert.ClassThresholdCrossed)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		time.Sleep(1100 * time.Millisecond)
		assert.True(t, d.ShouldSend(ctx, "acme", alert.ClassThresholdCrossed))
	})

	t.Run("fails open when redis is gone", func(t *testing.T) {
		dead := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
		defer dead.Close()

		d := alert.NewDeduplicator(alertredis.NewStore(dead), time.Hour, zerolog.Nop())
		assert.True(t, d.ShouldSend(ctx, "acme", alert.ClassThresholdCrossed))
		assert.True(t, d.ShouldSend(ctx, "acme", alert.ClassThresholdCrossed))
	})
}
