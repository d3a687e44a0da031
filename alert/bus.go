package alert

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Bus decouples alert producers from the Router. Publish never blocks: when the buffer is
// full the record is dropped and logged.
type Bus struct {
	ch      chan Record
	logger  zerolog.Logger
	dropped atomic.Int64
	once    sync.Once
	closed  atomic.Bool
}

// NewBus creates a bus holding up to size pending records
func NewBus(size int, logger zerolog.Logger) *Bus {
	if size <= 0 {
		size = 1
	}
	return &Bus{
		ch:     make(chan Record, size),
		logger: logger.With().Str("component", "alert-bus").Logger(),
	}
}

// Publish enqueues r if there is room
func (b *Bus) Publish(r Record) (sent bool) {
	if b.closed.Load() {
		return false
	}
	// a concurrent Close can still win the race; a send on a closed channel is treated as a drop
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case b.ch <- r:
		return true
	default:
		b.dropped.Add(1)
		b.logger.Warn().
			Str("tenant_id", r.TenantID).
			Str("class", string(r.Class)).
			Msg("alert bus full, record dropped")
		return false
	}
}

// Records is consumed by the Router
func (b *Bus) Records() <-chan Record {
	return b.ch
}

// Dropped returns how many records were discarded because the buffer was full
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting records; the Router drains what is left
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)
		close(b.ch)
	})
}
