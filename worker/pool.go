package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/audit"
	"github.com/marcelsud/jobgate/budget"
	"github.com/marcelsud/jobgate/executor"
	"github.com/marcelsud/jobgate/job"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Admission decides whether a tenant's job may run
type Admission interface {
	Decide(ctx context.Context, tenantID string) budget.Decision
	PostCheck(ctx context.Context, tenantID string) budget.Decision
}

// Heartbeater publishes worker liveness
type Heartbeater interface {
	SetWorkerHeartbeat(ctx context.Context, workerID, queueKey, status string) error
	RemoveWorkerHeartbeat(ctx context.Context, workerID, queueKey string) error
}

// Observer receives every recorded job transition
type Observer interface {
	ObserveOutcome(ctx context.Context, status job.Status, reason string)
}

type nopObserver struct{}

func (nopObserver) ObserveOutcome(context.Context, job.Status, string) {}

type nopHeartbeater struct{}

func (nopHeartbeater) SetWorkerHeartbeat(context.Context, string, string, string) error { return nil }
func (nopHeartbeater) RemoveWorkerHeartbeat(context.Context, string, string) error      { return nil }

/* Pool runs the dequeue -> admit -> execute loop over a set of queue keys
 * MinWorkers per key always run; a scaler adds elastic workers up to MaxWorkers while the
 * backlog is larger than the number of active workers
 * Retries are parked in the queue's delayed set and promoted back when due
 */
type Pool struct {
	cfg        PoolConfig
	queue      job.Queue
	admission  Admission
	exec       executor.Executor
	recorder   audit.Recorder
	alerts     alert.Publisher
	logger     zerolog.Logger
	observer   Observer
	heartbeats Heartbeater

	mu     sync.Mutex
	active map[string]*atomic.Int32
}

// NewPool creates a Pool
func NewPool(
	cfg PoolConfig,
	queue job.Queue,
	admission Admission,
	exec executor.Executor,
	recorder audit.Recorder,
	alerts alert.Publisher,
	logger zerolog.Logger,
) *Pool {
	return &Pool{
		cfg:        cfg.withDefaults(),
		queue:      queue,
		admission:  admission,
		exec:       exec,
		recorder:   recorder,
		alerts:     alerts,
		logger:     logger.With().Str("component", "worker").Logger(),
		observer:   nopObserver{},
		heartbeats: nopHeartbeater{},
		active:     make(map[string]*atomic.Int32),
	}
}

// WithObserver sets the outcome observer
func (p *Pool) WithObserver(o Observer) *Pool {
	if o != nil {
		p.observer = o
	}
	return p
}

// WithHeartbeats enables worker heartbeats
func (p *Pool) WithHeartbeats(h Heartbeater) *Pool {
	if h != nil {
		p.heartbeats = h
	}
	return p
}

// ActiveWorkers returns the number of running workers for key
func (p *Pool) ActiveWorkers(key string) int {
	return int(p.counter(key).Load())
}

// Run starts the workers and blocks until ctx is cancelled and every worker has returned
func (p *Pool) Run(ctx context.Context) error {
	if len(p.cfg.QueueKeys) == 0 {
		return fmt.Errorf("worker pool: no queue keys configured")
	}

	var wg conc.WaitGroup
	for _, key := range p.cfg.QueueKeys {
		key := key
		for i := 0; i < p.cfg.MinWorkers; i++ {
			wg.Go(func() { p.work(ctx, key, false) })
		}
		wg.Go(func() { p.promote(ctx, key) })
		wg.Go(func() { p.scale(ctx, key, &wg) })
	}

	p.logger.Info().
		Strs("queue_keys", p.cfg.QueueKeys).
		Int("min_workers", p.cfg.MinWorkers).
		Int("max_workers", p.cfg.MaxWorkers).
		Msg("worker pool started")

	wg.Wait()
	p.logger.Info().Msg("worker pool stopped")
	return nil
}

// ProcessOne pops one job from key and drives it to its next recorded state.
// It returns job.ErrQueueEmpty when nothing arrived within the pop timeout.
func (p *Pool) ProcessOne(ctx context.Context, key string) (job.Status, error) {
	return p.processNext(ctx, key, nil)
}

// processNext is ProcessOne with a hook called once a job has been taken off the queue
func (p *Pool) processNext(ctx context.Context, key string, popped func()) (job.Status, error) {
	j, err := p.queue.Pop(ctx, key, p.cfg.PopTimeout)
	if errors.Is(err, job.ErrValidation) {
		// the record is already off the queue and cannot be decoded
		j.QueueKey = key
		log := p.logger.With().Str("queue_key", key).Logger()
		p.record(ctx, log, j, job.Failed, job.ReasonValidation, err)
		return job.Failed, nil
	}
	if err != nil {
		return 0, err
	}
	if j.QueueKey == "" {
		j.QueueKey = key
	}
	if popped != nil {
		popped()
	}
	return p.process(ctx, j), nil
}

func (p *Pool) process(ctx context.Context, j job.Job) job.Status {
	attemptNo := j.Attempt + 1
	log := p.logger.With().
		Str("job_id", j.ID).
		Str("tenant_id", j.TenantID).
		Str("queue_key", j.QueueKey).
		Int("attempt", attemptNo).
		Logger()

	log.Debug().Str("status", job.Dequeued.String()).Msg("job dequeued")

	d := p.admission.Decide(ctx, j.TenantID)
	if !d.Outcome.Admitted() {
		log.Debug().Str("status", job.Blocked.String()).Float64("ratio", d.Ratio).Msg("job blocked")
		p.record(ctx, log, j, job.Failed, job.ReasonBudgetExceeded, nil)
		return job.Failed
	}
	log.Debug().
		Str("status", job.Admitted.String()).
		Str("admission", d.Outcome.String()).
		Str("admission_reason", string(d.Reason)).
		Msg("job admitted")

	log.Debug().Str("status", job.Executing.String()).Msg("job executing")
	err := p.execute(ctx, j, log)
	if err == nil {
		p.record(ctx, log, j, job.Completed, job.ReasonCompleted, nil)
		p.admission.PostCheck(ctx, j.TenantID)
		return job.Completed
	}

	switch {
	case errors.Is(err, job.ErrValidation):
		p.record(ctx, log, j, job.Failed, job.ReasonValidation, err)
		return job.Failed

	case job.IsTransient(err):
		reason := job.ReasonTransient
		if errors.Is(err, context.DeadlineExceeded) {
			reason = job.ReasonTimeout
		}
		if attemptNo >= p.cfg.MaxAttempts {
			p.record(ctx, log, j, job.Failed, job.ReasonRetriesExhausted, fmt.Errorf("%w: %w", job.ErrTerminal, err))
			p.alerts.Publish(alert.NewRecord(j.TenantID, alert.ClassRetriesExhausted,
				fmt.Sprintf("job %s failed after %d attempts: %s", j.ID, attemptNo, reason), 0))
			return job.Failed
		}
		if rerr := p.retry(ctx, j); rerr != nil {
			log.Error().Err(rerr).Msg("re-enqueueing job failed")
			p.record(ctx, log, j, job.Failed, reason, fmt.Errorf("%w; re-enqueue: %v", err, rerr))
			return job.Failed
		}
		p.record(ctx, log, j, job.Retrying, reason, err)
		return job.Retrying

	default:
		p.record(ctx, log, j, job.Failed, job.ReasonExecutionFailed, err)
		return job.Failed
	}
}

// execute runs the job body under the hard timeout. The attempt is abandoned at the
// deadline whether or not the executor returns.
func (p *Pool) execute(ctx context.Context, j job.Job, log zerolog.Logger) error {
	hctx, cancel := context.WithTimeout(ctx, p.cfg.HardTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("executor panicked: %v", r)
			}
		}()
		_, err := p.exec.Execute(hctx, j)
		done <- err
	}()

	soft := time.NewTimer(p.cfg.SoftTimeout)
	defer soft.Stop()

	for {
		select {
		case err := <-done:
			if err != nil && ctx.Err() != nil && !job.IsTransient(err) {
				return fmt.Errorf("execution interrupted: %w: %w", job.ErrTransient, err)
			}
			return err
		case <-soft.C:
			log.Warn().Dur("soft_timeout", p.cfg.SoftTimeout).Msg("job passed its checkpoint deadline")
		case <-hctx.Done():
			if ctx.Err() != nil {
				return fmt.Errorf("execution interrupted: %w: %w", job.ErrTransient, ctx.Err())
			}
			return fmt.Errorf("execution abandoned after %s: %w: %w", p.cfg.HardTimeout, job.ErrTransient, context.DeadlineExceeded)
		}
	}
}

// retry parks the next attempt in the delayed set
func (p *Pool) retry(ctx context.Context, j job.Job) error {
	j.Attempt++
	delay := p.retryDelay(j.Attempt)
	// the job must be handed back even when shutdown cancelled ctx
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return p.queue.PushDelayed(rctx, j.QueueKey, j, delay)
}

// retryDelay is exponential from BackoffBase with +/-50% jitter, capped at BackoffCap
func (p *Pool) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.BackoffBase
	b.MaxInterval = p.cfg.BackoffCap
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	if d > p.cfg.BackoffCap {
		d = p.cfg.BackoffCap
	}
	return d
}

func (p *Pool) record(ctx context.Context, log zerolog.Logger, j job.Job, status job.Status, reason string, cause error) {
	o := audit.Outcome{
		JobID:    j.ID,
		TenantID: j.TenantID,
		QueueKey: j.QueueKey,
		Status:   status,
		Reason:   reason,
		Attempt:  j.Attempt + 1,
		At:       time.Now().UTC(),
	}
	if cause != nil {
		o.Error = cause.Error()
	}

	ev := log.Info()
	if status == job.Failed {
		ev = log.Warn()
	}
	ev.Str("status", status.String()).
		Str("reason", reason).
		Bool("transient", job.IsTransient(cause)).
		AnErr("cause", cause).
		Msg("job transition")

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.recorder.RecordOutcome(rctx, o); err != nil {
		log.Error().Err(err).Msg("recording job outcome")
	}
	p.observer.ObserveOutcome(ctx, status, reason)
}

func (p *Pool) work(ctx context.Context, key string, elastic bool) {
	id := uuid.NewString()[:8]
	count := p.counter(key)
	count.Add(1)
	defer count.Add(-1)

	log := p.logger.With().Str("worker_id", id).Str("queue_key", key).Bool("elastic", elastic).Logger()
	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = p.heartbeats.RemoveWorkerHeartbeat(rctx, id, key)
	}()

	beat := func(status string) {
		if err := p.heartbeats.SetWorkerHeartbeat(ctx, id, key, status); err != nil {
			log.Debug().Err(err).Msg("heartbeat failed")
		}
	}

	var lastBeat time.Time
	idle := 0
	for ctx.Err() == nil {
		if time.Since(lastBeat) >= p.cfg.HeartbeatInterval {
			beat(StatusIdle)
			lastBeat = time.Now()
		}

		_, err := p.processNext(ctx, key, func() {
			beat(StatusExecuting)
			// report idle again as soon as the job is done
			lastBeat = time.Time{}
		})
		switch {
		case err == nil:
			idle = 0
		case errors.Is(err, job.ErrQueueEmpty):
			idle++
			if elastic && idle >= p.cfg.IdleExits {
				return
			}
		case ctx.Err() != nil:
			return
		default:
			// queue unreachable: back off instead of spinning
			log.Warn().Err(err).Msg("popping job failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.BackoffBase):
			}
		}
	}
}

func (p *Pool) promote(ctx context.Context, key string) {
	t := time.NewTicker(p.cfg.PromoteInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.queue.PromoteDue(ctx, key)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn().Err(err).Str("queue_key", key).Msg("promoting delayed jobs")
				}
				continue
			}
			if n > 0 {
				p.logger.Debug().Str("queue_key", key).Int("promoted", n).Msg("delayed jobs promoted")
			}
		}
	}
}

func (p *Pool) scale(ctx context.Context, key string, wg *conc.WaitGroup) {
	t := time.NewTicker(p.cfg.ScaleInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			depth, err := p.queue.Depth(ctx, key)
			if err != nil {
				continue
			}
			active := int64(p.ActiveWorkers(key))
			spare := int64(p.cfg.MaxWorkers) - active
			want := depth - active
			if want > spare {
				want = spare
			}
			for i := int64(0); i < want; i++ {
				wg.Go(func() { p.work(ctx, key, true) })
			}
			if want > 0 {
				p.logger.Debug().Str("queue_key", key).Int64("added", want).Int64("depth", depth).Msg("scaled up")
			}
		}
	}
}

func (p *Pool) counter(key string) *atomic.Int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.active[key]
	if !ok {
		c = &atomic.Int32{}
		p.active[key] = c
	}
	return c
}
