package worker

import "time"

// PoolConfig is handed to NewPool and never read from global state afterwards
type PoolConfig struct {
	QueueKeys []string

	// MinWorkers run for the whole life of the pool, per queue key
	MinWorkers int
	// MaxWorkers bounds permanent plus elastic workers, per queue key
	MaxWorkers int
	// IdleExits is how many consecutive empty polls make an elastic worker exit
	IdleExits int

	PopTimeout  time.Duration
	HardTimeout time.Duration
	SoftTimeout time.Duration

	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	ScaleInterval     time.Duration
	PromoteInterval   time.Duration
	HeartbeatInterval time.Duration
}

// DefaultPoolConfig returns the production defaults for a single queue key
func DefaultPoolConfig(keys ...string) PoolConfig {
	return PoolConfig{
		QueueKeys:         keys,
		MinWorkers:        4,
		MaxWorkers:        16,
		IdleExits:         3,
		PopTimeout:        5 * time.Second,
		HardTimeout:       120 * time.Second,
		SoftTimeout:       90 * time.Second,
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffCap:        600 * time.Second,
		ScaleInterval:     time.Second,
		PromoteInterval:   time.Second,
		HeartbeatInterval: 20 * time.Second,
	}
}

func (c PoolConfig) withDefaults() PoolConfig {
	d := DefaultPoolConfig()
	if c.MinWorkers < 1 {
		c.MinWorkers = 1
	}
	if c.MaxWorkers < c.MinWorkers {
		c.MaxWorkers = c.MinWorkers
	}
	if c.IdleExits <= 0 {
		c.IdleExits = d.IdleExits
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = d.PopTimeout
	}
	if c.HardTimeout <= 0 {
		c.HardTimeout = d.HardTimeout
	}
	if c.SoftTimeout <= 0 || c.SoftTimeout >= c.HardTimeout {
		c.SoftTimeout = c.HardTimeout * 3 / 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffCap < c.BackoffBase {
		c.BackoffCap = c.BackoffBase
	}
	if c.ScaleInterval <= 0 {
		c.ScaleInterval = d.ScaleInterval
	}
	if c.PromoteInterval <= 0 {
		c.PromoteInterval = d.PromoteInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	return c
}

// Worker heartbeat statuses
const (
	StatusIdle      = "idle"
	StatusExecuting = "executing"
)
