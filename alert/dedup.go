package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// KeyStore sets a key only when absent, with a TTL. It must be atomic across processes
// sharing the store.
type KeyStore interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Deduplicator suppresses repeat notifications of one (tenant, class) inside a cool-down window
type Deduplicator struct {
	store   KeyStore
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDeduplicator creates a Deduplicator with the given cool-down
func NewDeduplicator(store KeyStore, ttl time.Duration, logger zerolog.Logger) *Deduplicator {
	return &Deduplicator{
		store:   store,
		ttl:     ttl,
		timeout: time.Second,
		logger:  logger.With().Str("component", "dedup").Logger(),
	}
}

// ShouldSend marks (tenantID, class) as sent and reports true when no alert was sent in the
// window. When the store is unavailable it fails open and returns true.
func (d *Deduplicator) ShouldSend(ctx context.Context, tenantID string, class Class) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ok, err := d.store.SetNX(ctx, DedupKey(tenantID, class), d.ttl)
	if err != nil {
		d.logger.Warn().Err(err).
			Str("tenant_id", tenantID).
			Str("class", string(class)).
			Msg("dedup store unavailable, sending without deduplication")
		return true
	}
	return ok
}

// memoryPruneEvery is how often SetNX drops expired keys from a MemoryStore
const memoryPruneEvery = time.Minute

// MemoryStore is a process-local KeyStore
type MemoryStore struct {
	mu     sync.Mutex
	keys   map[string]time.Time
	now    func() time.Time
	pruned time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]time.Time), now: time.Now}
}

// SetNX sets key for ttl unless a live entry exists
func (m *MemoryStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.pruned) >= memoryPruneEvery {
		for k, exp := range m.keys {
			if !now.Before(exp) {
				delete(m.keys, k)
			}
		}
		m.pruned = now
	}

	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.keys[key] = now.Add(ttl)
	return true, nil
}

// Len returns the number of keys held, expired ones not yet pruned included
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// SetClock replaces the clock, for tests
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
