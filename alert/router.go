package alert

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// RouterConfig maps severities to channel names and bounds each dispatch
type RouterConfig struct {
	Routes      map[Severity][]string
	Retries     uint64
	Timeout     time.Duration
	BackoffBase time.Duration
}

// DefaultRoutes sends low severity to slack and fans higher severities out
func DefaultRoutes() map[Severity][]string {
	return map[Severity][]string{
		Low:      {"slack"},
		High:     {"slack", "webhook"},
		Critical: {"slack", "webhook", "amqp"},
	}
}

// DefaultRouterConfig returns 2 retries, a 10s per-send timeout and 200ms base backoff
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Routes:      DefaultRoutes(),
		Retries:     2,
		Timeout:     10 * time.Second,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Observer receives the result of every routed record
type Observer interface {
	ObserveAlert(ctx context.Context, r Record, result string)
}

type nopObserver struct{}

func (nopObserver) ObserveAlert(context.Context, Record, string) {}

type nopHistory struct{}

func (nopHistory) RecordAlert(context.Context, Record, string) error { return nil }

/* Router consumes alert records, deduplicates them and fans them out to channels
 * Route returns as soon as dispatch has been started; channel failures are retried a
 * bounded number of times then logged and dropped
 */
type Router struct {
	cfg      RouterConfig
	channels map[string]Channel
	dedup    *Deduplicator
	history  History
	logger   zerolog.Logger
	observer Observer
	inflight sync.WaitGroup
}

// NewRouter creates a Router. A nil history discards records.
func NewRouter(cfg RouterConfig, dedup *Deduplicator, history History, logger zerolog.Logger, channels ...Channel) *Router {
	if cfg.Routes == nil {
		cfg.Routes = DefaultRoutes()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRouterConfig().Timeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultRouterConfig().BackoffBase
	}
	if history == nil {
		history = nopHistory{}
	}

	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}

	return &Router{
		cfg:      cfg,
		channels: byName,
		dedup:    dedup,
		history:  history,
		logger:   logger.With().Str("component", "alert-router").Logger(),
		observer: nopObserver{},
	}
}

// WithObserver sets the routing observer
func (r *Router) WithObserver(o Observer) *Router {
	if o != nil {
		r.observer = o
	}
	return r
}

// Run routes records until the channel is closed or ctx is done, then waits for
// in-flight dispatches. Records already buffered when ctx ends are still routed.
func (r *Router) Run(ctx context.Context, records <-chan Record) {
	defer r.Wait()
	for {
		select {
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx), records)
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			r.Route(ctx, rec)
		}
	}
}

// drain routes whatever is buffered without waiting for more
func (r *Router) drain(ctx context.Context, records <-chan Record) {
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return
			}
			r.Route(ctx, rec)
		default:
			return
		}
	}
}

// Route deduplicates rec and starts dispatch to every channel of its severity
func (r *Router) Route(ctx context.Context, rec Record) {
	log := r.logger.With().
		Str("alert_id", rec.ID).
		Str("tenant_id", rec.TenantID).
		Str("class", string(rec.Class)).
		Str("severity", rec.Severity.String()).
		Logger()

	if !r.dedup.ShouldSend(ctx, rec.TenantID, rec.Class) {
		log.Debug().Msg("alert suppressed inside cool-down window")
		r.finish(ctx, rec, ResultSuppressed, log)
		return
	}

	targets := r.targets(rec.Severity, log)
	if len(targets) == 0 {
		log.Warn().Msg("no channel configured for severity")
		r.finish(ctx, rec, ResultFailed, log)
		return
	}

	msg := NewMessage(rec)
	// dispatch outlives the caller's cancellation; each send has its own timeout
	dctx := context.WithoutCancel(ctx)

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()

		var mu sync.Mutex
		delivered := 0

		var wg conc.WaitGroup
		for _, ch := range targets {
			ch := ch
			wg.Go(func() {
				if err := r.send(dctx, ch, msg); err != nil {
					log.Error().Err(err).Str("channel", ch.Name()).Msg("alert dispatch dropped")
					return
				}
				mu.Lock()
				delivered++
				mu.Unlock()
			})
		}
		if p := wg.WaitAndRecover(); p != nil {
			log.Error().Str("panic", p.String()).Msg("alert channel panicked")
		}

		result := ResultDelivered
		if delivered == 0 {
			result = ResultFailed
		}
		r.finish(dctx, rec, result, log)
	}()
}

// Wait blocks until every started dispatch has finished
func (r *Router) Wait() {
	r.inflight.Wait()
}

func (r *Router) targets(sev Severity, log zerolog.Logger) []Channel {
	var out []Channel
	for _, name := range r.cfg.Routes[sev] {
		ch, ok := r.channels[name]
		if !ok {
			log.Debug().Str("channel", name).Msg("channel not configured, skipping")
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (r *Router) send(ctx context.Context, ch Channel, msg Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BackoffBase
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		sctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		err := ch.Send(sctx, msg)
		if err != nil {
			r.logger.Debug().Err(err).
				Str("channel", ch.Name()).
				Int("attempt", attempt).
				Msg("alert dispatch failed")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.Retries), ctx))
}

func (r *Router) finish(ctx context.Context, rec Record, result string, log zerolog.Logger) {
	if err := r.history.RecordAlert(ctx, rec, result); err != nil {
		log.Warn().Err(err).Msg("recording alert history")
	}
	r.observer.ObserveAlert(ctx, rec, result)
	log.Info().Str("result", result).Msg("alert routed")
}
