package budget

import (
	"context"
	"time"
)

// State is the last known spend-vs-limit picture of one tenant.
// The cache only relays what the authoritative source returned plus its age.
type State struct {
	TenantID       string    `json:"tenant_id"`
	Spend          float64   `json:"spend"`
	Limit          float64   `json:"limit"`
	AlertThreshold float64   `json:"alert_threshold,omitempty"`
	GraceThreshold float64   `json:"grace_threshold,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`

	// Stale is set when a refresh failed and the previous value was served
	Stale bool `json:"stale,omitempty"`

	// Unknown is set when there was nothing to fall back to
	Unknown bool `json:"unknown,omitempty"`

	// Generation increases with every successful refresh
	Generation uint64 `json:"generation,omitempty"`
}

// UnknownState is the sentinel returned when the cache is cold and the source failed
func UnknownState(tenantID string) State {
	return State{TenantID: tenantID, Unknown: true}
}

// Age is how old the fetched values are at now
func (s State) Age(now time.Time) time.Duration {
	if s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}

// Source is the authoritative budget system
type Source interface {
	FetchBudget(ctx context.Context, tenantID string) (State, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, tenantID string) (State, error)

// FetchBudget calls f
func (f SourceFunc) FetchBudget(ctx context.Context, tenantID string) (State, error) {
	return f(ctx, tenantID)
}

// Policy holds the platform-wide admission parameters. Per-tenant thresholds carried
// by a State take precedence when set.
type Policy struct {
	AlertThreshold float64
	GraceThreshold float64

	// DefaultLimit replaces a zero or negative tenant limit
	DefaultLimit float64
}

// DefaultPolicy returns 80% alert, 110% grace and a 100 unit default limit
func DefaultPolicy() Policy {
	return Policy{
		AlertThreshold: 0.80,
		GraceThreshold: 1.10,
		DefaultLimit:   100,
	}
}

func (p Policy) thresholds(s State) (alert, grace float64) {
	alert, grace = p.AlertThreshold, p.GraceThreshold
	if s.AlertThreshold > 0 {
		alert = s.AlertThreshold
	}
	if s.GraceThreshold > 0 {
		grace = s.GraceThreshold
	}
	return alert, grace
}
