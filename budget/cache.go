package budget

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Lookup tells how a Get was served
type Lookup int

const (
	FreshHit Lookup = iota + 1
	FreshRefresh
	StaleFallback
	UnknownFallback
)

// String converts the lookup kind to a string
func (l Lookup) String() string {
	switch l {
	case FreshHit:
		return "fresh-hit"
	case FreshRefresh:
		return "fresh-refresh"
	case StaleFallback:
		return "stale-fallback"
	case UnknownFallback:
		return "unknown-fallback"
	}
	return "unknown"
}

// Degraded reports whether the lookup fell back because the source failed
func (l Lookup) Degraded() bool {
	return l == StaleFallback || l == UnknownFallback
}

// CacheConfig configures the Budget Cache
type CacheConfig struct {
	TTL          time.Duration
	FetchTimeout time.Duration
}

// DefaultCacheConfig returns a 60s TTL and a 2s fetch timeout
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 60 * time.Second, FetchTimeout: 2 * time.Second}
}

/* Cache is a read-through, per-tenant cache in front of a Source
 * Entries are replaced wholesale on refresh and never merged
 * Concurrent misses for one tenant share one source call
 * A caller never waits longer than FetchTimeout, even if the source ignores its context
 */
type Cache struct {
	source     Source
	cfg        CacheConfig
	entries    sync.Map // tenantID -> State
	group      singleflight.Group
	generation atomic.Uint64
	logger     zerolog.Logger
	now        func() time.Time
}

// NewCache creates a cache over source
func NewCache(source Source, cfg CacheConfig, logger zerolog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultCacheConfig().FetchTimeout
	}
	return &Cache{
		source: source,
		cfg:    cfg,
		logger: logger.With().Str("component", "budget-cache").Logger(),
		now:    time.Now,
	}
}

// Get returns the tenant's budget state, refreshing it when missing or expired
func (c *Cache) Get(ctx context.Context, tenantID string) (State, Lookup) {
	prev, hasPrev := c.load(tenantID)
	if hasPrev && c.now().Sub(prev.FetchedAt) < c.cfg.TTL {
		c.log(tenantID, FreshHit, prev)
		return prev, FreshHit
	}

	results := c.group.DoChan(tenantID, func() (interface{}, error) {
		return c.refresh(ctx, tenantID)
	})

	timer := time.NewTimer(c.cfg.FetchTimeout)
	defer timer.Stop()

	var err error
	select {
	case res := <-results:
		if res.Err == nil {
			st := res.Val.(State)
			c.log(tenantID, FreshRefresh, st)
			return st, FreshRefresh
		}
		err = res.Err
	case <-timer.C:
		err = context.DeadlineExceeded
	case <-ctx.Done():
		err = ctx.Err()
	}

	if hasPrev {
		prev.Stale = true
		c.logger.Warn().Err(err).
			Str("tenant_id", tenantID).
			Str("lookup", StaleFallback.String()).
			Dur("age", prev.Age(c.now())).
			Msg("budget refresh failed, serving stale state")
		return prev, StaleFallback
	}

	c.logger.Warn().Err(err).
		Str("tenant_id", tenantID).
		Str("lookup", UnknownFallback.String()).
		Msg("budget refresh failed, no previous state")
	return UnknownState(tenantID), UnknownFallback
}

// refresh fetches from the source detached from the caller's cancellation, so one caller
// giving up does not fail the fetch the other waiters share
func (c *Cache) refresh(ctx context.Context, tenantID string) (State, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
	defer cancel()

	st, err := c.source.FetchBudget(fetchCtx, tenantID)
	if err != nil {
		return State{}, err
	}
	if fetchCtx.Err() != nil {
		// answered after the deadline; callers have already fallen back
		return State{}, fetchCtx.Err()
	}

	st.TenantID = tenantID
	st.FetchedAt = c.now()
	st.Stale = false
	st.Unknown = false
	st.Generation = c.generation.Add(1)
	c.entries.Store(tenantID, st)
	return st, nil
}

// Invalidate drops the tenant's entry so the next Get refreshes it
func (c *Cache) Invalidate(tenantID string) {
	c.entries.Delete(tenantID)
}

// Sweep evicts entries fetched more than maxAge ago and returns how many were removed
func (c *Cache) Sweep(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)
	removed := 0
	c.entries.Range(func(k, v interface{}) bool {
		if v.(State).FetchedAt.Before(cutoff) {
			c.entries.Delete(k)
			removed++
		}
		return true
	})
	return removed
}

// Len returns the number of cached tenants
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func (c *Cache) load(tenantID string) (State, bool) {
	v, ok := c.entries.Load(tenantID)
	if !ok {
		return State{}, false
	}
	return v.(State), true
}

func (c *Cache) log(tenantID string, l Lookup, st State) {
	c.logger.Debug().
		Str("tenant_id", tenantID).
		Str("lookup", l.String()).
		Uint64("generation", st.Generation).
		Msg("budget lookup")
}
