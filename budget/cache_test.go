package budget_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/jobgate/budget"
	"github.com/marcelsud/jobgate/budget/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCache(src budget.Source, ttl, timeout time.Duration) *budget.Cache {
	return budget.NewCache(src, budget.CacheConfig{TTL: ttl, FetchTimeout: timeout}, zerolog.Nop())
}

func TestCache_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("success - miss refreshes then hits", func(t *testing.T) {
		src := mocks.NewSource(t)
		src.On("FetchBudget", mock.Anything, "acme").
			Return(budget.State{Spend: 50, Limit: 100}, nil).Once()

		c := newCache(src, time.Minute, time.Second)

		st, lookup := c.Get(ctx, "acme")
		assert.Equal(t, budget.FreshRefresh, lookup)
		assert.Equal(t, 50.0, st.Spend)
		assert.Equal(t, "acme", st.TenantID)
		assert.False(t, st.FetchedAt.IsZero())

		st, lookup = c.Get(ctx, "acme")
		assert.Equal(t, budget.FreshHit, lookup)
		assert.Equal(t, 50.0, st.Spend)
	})

	t.Run("expired entry is replaced wholesale", func(t *testing.T) {
		src := mocks.NewSource(t)
		src.On("FetchBudget", mock.Anything, "acme").
			Return(budget.State{Spend: 50, Limit: 100, AlertThreshold: 0.7}, nil).Once()
		src.On("FetchBudget", mock.Anything, "acme").
			Return(budget.State{Spend: 60, Limit: 100}, nil).Once()

		c := newCache(src, 10*time.Millisecond, time.Second)

		first, _ := c.Get(ctx, "acme")
		time.Sleep(20 * time.Millisecond)
		second, lookup := c.Get(ctx, "acme")

		assert.Equal(t, budget.FreshRefresh, lookup)
		assert.Equal(t, 60.0, second.Spend)
		assert.Zero(t, second.AlertThreshold)
		assert.Greater(t, second.Generation, first.Generation)
	})

	t.Run("failed refresh serves stale value", func(t *testing.T) {
		src := mocks.NewSource(t)
		src.On("FetchBudget", mock.Anything, "acme").
			Return(budget.State{Spend: 50, Limit: 100}, nil).Once()
		src.On("FetchBudget", mock.Anything, "acme").
			Return(budget.State{}, errors.New("503 service unavailable")).Once()

		c := newCache(src, 10*time.Millisecond, time.Second)

		fresh, _ := c.Get(ctx, "acme")
		time.Sleep(20 * time.Millisecond)
		st, lookup := c.Get(ctx, "acme")

		assert.Equal(t, budget.StaleFallback, lookup)
		assert.True(t, st.Stale)
		assert.Equal(t, 50.0, st.Spend)
		assert.Equal(t, fresh.Generation, st.Generation)
	})

	t.Run("cold cache and failed refresh is unknown", func(t *testing.T) {
		src := mocks.NewSource(t)
		src.On("FetchBudget", mock.Anything, "acme").
			Return(budget.State{}, errors.New("connection refused")).Once()

		c := newCache(src, time.Minute, time.Second)

		st, lookup := c.Get(ctx, "acme")
		assert.Equal(t, budget.UnknownFallback, lookup)
		assert.True(t, st.Unknown)
		assert.Equal(t, 0, c.Len())
	})
}

func TestCache_Timeout(t *testing.T) {
	ctx := context.Background()

	t.Run("hung source does not hold the caller", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		src := budget.SourceFunc(func(ctx context.Context, tenantID string) (budget.State, error) {
			<-release // ignores ctx on purpose
			return budget.State{Spend: 1, Limit: 100}, nil
		})
		c := newCache(src, time.Minute, 50*time.Millisecond)

		start := time.Now()
		_, lookup := c.Get(ctx, "acme")
		elapsed := time.Since(start)

		assert.Equal(t, budget.UnknownFallback, lookup)
		assert.Less(t, elapsed, 500*time.Millisecond)
	})

	t.Run("slow answer after the deadline is discarded", func(t *testing.T) {
		src := budget.SourceFunc(func(ctx context.Context, tenantID string) (budget.State, error) {
			<-ctx.Done()
			return budget.State{}, ctx.Err()
		})
		c := newCache(src, time.Minute, 30*time.Millisecond)

		_, lookup := c.Get(ctx, "acme")
		assert.Equal(t, budget.UnknownFallback, lookup)
	})
}

func TestCache_Singleflight(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int32
	gate := make(chan struct{})
	src := budget.SourceFunc(func(ctx context.Context, tenantID string) (budget.State, error) {
		calls.Add(1)
		<-gate
		return budget.State{Spend: 10, Limit: 100}, nil
	})
	c := newCache(src, time.Minute, 2*time.Second)

	var wg sync.WaitGroup
	lookups := make(chan budget.Lookup, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, l := c.Get(ctx, "acme")
			lookups <- l
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(lookups)

	assert.Equal(t, int32(1), calls.Load())
	for l := range lookups {
		assert.Contains(t, []budget.Lookup{budget.FreshRefresh, budget.FreshHit}, l)
	}
}

func TestCache_InvalidateAndSweep(t *testing.T) {
	ctx := context.Background()

	src := mocks.NewSource(t)
	src.On("FetchBudget", mock.Anything, mock.Anything).
		Return(budget.State{Spend: 1, Limit: 100}, nil)

	c := newCache(src, time.Minute, time.Second)
	c.Get(ctx, "acme")
	c.Get(ctx, "globex")
	assert.Equal(t, 2, c.Len())

	c.Invalidate("acme")
	assert.Equal(t, 1, c.Len())
	_, lookup := c.Get(ctx, "acme")
	assert.Equal(t, budget.FreshRefresh, lookup)

	assert.Equal(t, 0, c.Sweep(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, c.Sweep(time.Millisecond))
	assert.Equal(t, 0, c.Len())
}
