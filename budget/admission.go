package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/jobgate/alert"
	"github.com/rs/zerolog"
)

// Outcome of an admission check
type Outcome int

const (
	Allow Outcome = iota + 1
	AllowWithWarning
	Block
)

// String converts the outcome to a string
func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case AllowWithWarning:
		return "allow-with-warning"
	case Block:
		return "block"
	}
	return "unknown"
}

// Admitted reports whether the job body may run
func (o Outcome) Admitted() bool {
	return o == Allow || o == AllowWithWarning
}

// Reason explains an Outcome
type Reason string

const (
	WithinBudget  Reason = "within-budget"
	WithinGrace   Reason = "within-grace"
	OverGrace     Reason = "over-grace"
	FailSafeAllow Reason = "fail-safe-allow"
)

// Decision is computed per check and never persisted
type Decision struct {
	TenantID   string
	Outcome    Outcome
	Reason     Reason
	Ratio      float64
	Lookup     Lookup
	Generation uint64
}

// Evaluate applies the admission rules to s. It is a pure function of its inputs.
func Evaluate(s State, p Policy) Decision {
	d := Decision{TenantID: s.TenantID, Generation: s.Generation}

	if s.Unknown {
		d.Outcome = Allow
		d.Reason = FailSafeAllow
		return d
	}

	limit := s.Limit
	if limit <= 0 {
		limit = p.DefaultLimit
	}
	d.Ratio = s.Spend / limit

	alertAt, graceAt := p.thresholds(s)
	switch {
	case d.Ratio < alertAt:
		d.Outcome, d.Reason = Allow, WithinBudget
	case d.Ratio < graceAt:
		d.Outcome, d.Reason = AllowWithWarning, WithinGrace
	default:
		d.Outcome, d.Reason = Block, OverGrace
	}
	return d
}

// StateReader is the read side of the Budget Cache
type StateReader interface {
	Get(ctx context.Context, tenantID string) (State, Lookup)
}

// Observer receives every admission decision
type Observer interface {
	ObserveDecision(ctx context.Context, d Decision)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(context.Context, Decision) {}

/* Controller turns cache lookups into admission decisions and publishes the alerts they imply
 * It never touches spend counters: concurrent decisions for one tenant are independent reads
 * Threshold and grace alerts fire once per tenant per refresh generation; infra-degraded
 * alerts once per outage and then at most once per degradedInterval
 */
type Controller struct {
	cache    StateReader
	policy   Policy
	alerts   alert.Publisher
	logger   zerolog.Logger
	observer Observer

	// "tenant|class" -> generation that already produced an alert
	fired sync.Map

	// tenant -> time of the last infra-degraded alert of the current outage
	degraded         sync.Map
	degradedInterval time.Duration
}

// DefaultDegradedInterval spaces infra-degraded alerts for one tenant during an outage
const DefaultDegradedInterval = time.Minute

// NewController creates a Controller
func NewController(cache StateReader, policy Policy, alerts alert.Publisher, logger zerolog.Logger) *Controller {
	return &Controller{
		cache:    cache,
		policy:   policy,
		alerts:   alerts,
		logger:   logger.With().Str("component", "admission").Logger(),
		observer: nopObserver{},

		degradedInterval: DefaultDegradedInterval,
	}
}

// WithDegradedInterval sets how often a tenant's infra-degraded alert is repeated while
// its budget lookups keep falling back
func (c *Controller) WithDegradedInterval(d time.Duration) *Controller {
	if d > 0 {
		c.degradedInterval = d
	}
	return c
}

// WithObserver sets the decision observer
func (c *Controller) WithObserver(o Observer) *Controller {
	if o != nil {
		c.observer = o
	}
	return c
}

// Decide returns the admission decision for tenantID
func (c *Controller) Decide(ctx context.Context, tenantID string) Decision {
	st, lookup := c.cache.Get(ctx, tenantID)
	st.TenantID = tenantID

	d := Evaluate(st, c.policy)
	d.Lookup = lookup

	c.publish(d)
	c.observer.ObserveDecision(ctx, d)

	c.logger.Debug().
		Str("tenant_id", tenantID).
		Str("outcome", d.Outcome.String()).
		Str("reason", string(d.Reason)).
		Float64("ratio", d.Ratio).
		Str("lookup", lookup.String()).
		Msg("admission decision")
	return d
}

// PostCheck re-reads the tenant's budget after a job ran, so a crossing caused by the job
// itself is alerted without waiting for the next admission
func (c *Controller) PostCheck(ctx context.Context, tenantID string) Decision {
	st, lookup := c.cache.Get(ctx, tenantID)
	st.TenantID = tenantID

	d := Evaluate(st, c.policy)
	d.Lookup = lookup
	if !lookup.Degraded() {
		c.publish(d)
	}
	return d
}

func (c *Controller) publish(d Decision) {
	if d.Lookup.Degraded() {
		c.publishDegraded(d)
	} else {
		c.degraded.Delete(d.TenantID)
	}

	var class alert.Class
	switch d.Reason {
	case WithinGrace:
		class = alert.ClassThresholdCrossed
	case OverGrace:
		class = alert.ClassGraceExceeded
	default:
		return
	}

	key := d.TenantID + "|" + string(class)
	if prev, loaded := c.fired.Swap(key, d.Generation); loaded && prev.(uint64) == d.Generation {
		return
	}

	msg := fmt.Sprintf("tenant %s at %.1f%% of budget", d.TenantID, d.Ratio*100)
	c.alerts.Publish(alert.NewRecord(d.TenantID, class, msg, d.Ratio))
}

// publishDegraded raises an infra-degraded alert once when a tenant's lookups start falling
// back, then at most once per degradedInterval until a healthy lookup ends the outage
func (c *Controller) publishDegraded(d Decision) {
	now := time.Now()
	if prev, loaded := c.degraded.LoadOrStore(d.TenantID, now); loaded {
		if now.Sub(prev.(time.Time)) < c.degradedInterval {
			return
		}
		if !c.degraded.CompareAndSwap(d.TenantID, prev, now) {
			return
		}
	}

	msg := "budget source unreachable, admission running fail-safe"
	if d.Lookup == StaleFallback {
		msg = "budget source unreachable, admission using stale budget"
	}
	c.alerts.Publish(alert.NewRecord(d.TenantID, alert.ClassInfraDegraded, msg, d.Ratio))
}
