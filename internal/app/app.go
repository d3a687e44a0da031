package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/alert/notify"
	alertredis "github.com/marcelsud/jobgate/alert/redis"
	"github.com/marcelsud/jobgate/audit"
	auditpostgres "github.com/marcelsud/jobgate/audit/postgres"
	auditsqlite "github.com/marcelsud/jobgate/audit/sqlite"
	"github.com/marcelsud/jobgate/budget"
	"github.com/marcelsud/jobgate/budget/remote"
	budgetsqlite "github.com/marcelsud/jobgate/budget/sqlite"
	"github.com/marcelsud/jobgate/config"
	"github.com/marcelsud/jobgate/executor"
	httpchi "github.com/marcelsud/jobgate/internal/http/chi"
	"github.com/marcelsud/jobgate/job"
	"github.com/marcelsud/jobgate/job/memory"
	jobredis "github.com/marcelsud/jobgate/job/redis"
	"github.com/marcelsud/jobgate/metrics"
	"github.com/marcelsud/jobgate/scheduler"
	"github.com/marcelsud/jobgate/tenants"
	"github.com/marcelsud/jobgate/webhook/signature"
	"github.com/marcelsud/jobgate/worker"
	"github.com/rs/zerolog"
)

// NewLogger builds the process logger at the configured level
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("service", "jobgate").Logger()
}

/* App holds every component of one jobgate process
 * The api binary serves Handler(); the worker binary calls RunWorkers
 * Both share the same wiring so a job accepted by one is understood by the other
 */
type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	Queue      job.Queue
	Jobs       *job.Service
	Tenants    *tenants.Loader
	Verifier   *signature.Verifier
	Cache      *budget.Cache
	Controller *budget.Controller
	Bus        *alert.Bus
	Router     *alert.Router
	Audit      audit.Store
	Exporter   *metrics.OTelExporter
	Pool       *worker.Pool
	Scheduler  *scheduler.Scheduler

	queueKeys []string
	closers   []func(context.Context) error
}

type overrides struct {
	queue     job.Queue
	source    budget.Source
	store     audit.Store
	dedup     alert.KeyStore
	exec      executor.Executor
	channels  []alert.Channel
	tenants   *tenants.Loader
	noMetrics bool
}

// Option replaces a configured component, mostly for tests and single-process runs
type Option func(*overrides)

// WithQueue uses q instead of the configured queue driver
func WithQueue(q job.Queue) Option { return func(o *overrides) { o.queue = q } }

// WithBudgetSource uses s instead of the configured budget driver
func WithBudgetSource(s budget.Source) Option { return func(o *overrides) { o.source = s } }

// WithAuditStore uses s instead of the configured audit driver
func WithAuditStore(s audit.Store) Option { return func(o *overrides) { o.store = s } }

// WithDedupStore uses s for alert de-duplication
func WithDedupStore(s alert.KeyStore) Option { return func(o *overrides) { o.dedup = s } }

// WithExecutor uses e to run job bodies
func WithExecutor(e executor.Executor) Option { return func(o *overrides) { o.exec = e } }

// WithChannels replaces the configured alert channels
func WithChannels(ch ...alert.Channel) Option { return func(o *overrides) { o.channels = ch } }

// WithTenants uses l instead of loading TENANTS_FILE
func WithTenants(l *tenants.Loader) Option { return func(o *overrides) { o.tenants = l } }

// WithoutMetrics skips the Prometheus exporter
func WithoutMetrics() Option { return func(o *overrides) { o.noMetrics = true } }

// New wires the components described by cfg
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	verifier, err := signature.NewVerifier(logger, cfg.WebhookSecret, cfg.WebhookSecretPrevious)
	if err != nil {
		return nil, fmt.Errorf("creating verifier: %w", err)
	}
	a.Verifier = verifier

	a.Tenants = o.tenants
	if a.Tenants == nil {
		a.Tenants = tenants.NewLoader()
		if err := a.Tenants.Load(cfg.TenantsFile); err != nil {
			return nil, fmt.Errorf("loading tenants: %w", err)
		}
	}
	for _, class := range a.Tenants.QueueClasses() {
		a.queueKeys = append(a.queueKeys, job.QueueKey(cfg.QueueKeyPrefix, class))
	}

	var heartbeats *jobredis.Queue
	dedupStore := o.dedup
	switch {
	case o.queue != nil:
		a.Queue = o.queue
	case cfg.QueueDriver == "memory":
		a.Queue = memory.NewQueue()
	default:
		rq, err := jobredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.Queue = rq
		heartbeats = rq
		if dedupStore == nil {
			dedupStore = alertredis.NewStore(rq.GetClient())
		}
	}
	a.closers = append(a.closers, a.Queue.Close)
	if dedupStore == nil {
		dedupStore = alert.NewMemoryStore()
	}
	a.Jobs = job.NewService(a.Queue)

	source := o.source
	if source == nil {
		switch cfg.BudgetDriver {
		case "remote":
			source = remote.NewClient(cfg.BudgetSourceURL, cfg.BudgetSourceAPIKey, cfg.BudgetFetchTimeout)
		default:
			repo, err := budgetsqlite.NewRepository(cfg.BudgetDBPath)
			if err != nil {
				return nil, fmt.Errorf("opening budget store: %w", err)
			}
			a.closers = append(a.closers, repo.Close)
			source = repo
		}
	}

	a.Audit = o.store
	if a.Audit == nil {
		switch cfg.AuditDriver {
		case "postgres":
			repo, err := auditpostgres.NewRepository(ctx, cfg.AuditPostgresDSN)
			if err != nil {
				return nil, fmt.Errorf("opening audit store: %w", err)
			}
			if err := repo.CreateSchema(ctx); err != nil {
				repo.Close(ctx)
				return nil, fmt.Errorf("creating audit schema: %w", err)
			}
			a.Audit = repo
		case "log":
			a.Audit = audit.NewLogStore(logger)
		default:
			repo, err := auditsqlite.NewRepository(cfg.AuditDBPath)
			if err != nil {
				return nil, fmt.Errorf("opening audit store: %w", err)
			}
			a.Audit = repo
		}
	}
	a.closers = append(a.closers, a.Audit.Close)

	if !o.noMetrics {
		var lister metrics.HeartbeatLister
		if heartbeats != nil {
			lister = heartbeats
		}
		exporter, err := metrics.NewOTelExporter(metrics.NewQueueCollector(a.Queue, lister, a.queueKeys...))
		if err != nil {
			return nil, fmt.Errorf("creating metrics exporter: %w", err)
		}
		a.Exporter = exporter
		a.closers = append(a.closers, exporter.Shutdown)
	}

	a.Bus = alert.NewBus(cfg.AlertBuffer, logger)

	channels := o.channels
	if channels == nil {
		channels, err = a.channels()
		if err != nil {
			return nil, err
		}
	}
	a.Router = alert.NewRouter(cfg.RouterConfig(), alert.NewDeduplicator(dedupStore, cfg.DedupTTL, logger), a.Audit, logger, channels...)

	a.Cache = budget.NewCache(source, cfg.CacheConfig(), logger)
	a.Controller = budget.NewController(a.Cache, cfg.Policy(), a.Bus, logger)
	// repeating faster than the dedup window would only produce suppressed records
	a.Controller.WithDegradedInterval(cfg.DedupTTL)

	exec := o.exec
	if exec == nil && cfg.ExecutorURL != "" {
		exec = executor.NewHTTP(cfg.ExecutorURL)
	}
	if exec != nil {
		a.Pool = worker.NewPool(cfg.PoolConfig(a.queueKeys...), a.Queue, a.Controller, exec, a.Audit, a.Bus, logger)
		if heartbeats != nil {
			a.Pool.WithHeartbeats(heartbeats)
		}
	}

	if a.Exporter != nil {
		a.Controller.WithObserver(a.Exporter)
		a.Router.WithObserver(a.Exporter)
		if a.Pool != nil {
			a.Pool.WithObserver(a.Exporter)
		}
	}

	jobs := scheduler.NewJobs(a.Queue, a.queueKeys, cfg.BacklogAlertDepth, a.Bus, a.Cache, cfg.BudgetStaleMaxAge, logger)
	a.Scheduler = scheduler.NewScheduler(jobs, cfg.SchedulerConfig(), logger)

	ok = true
	return a, nil
}

// channels builds the alert channels. A channel without a destination falls back to the log
// so its alerts stay visible.
func (a *App) channels() ([]alert.Channel, error) {
	cfg := a.cfg
	var out []alert.Channel

	if cfg.SlackWebhookURL != "" {
		out = append(out, notify.NewSlack(cfg.SlackWebhookURL, cfg.SlackChannel))
	} else {
		out = append(out, notify.NewLog("slack", a.logger))
	}

	if cfg.AlertWebhookURL != "" {
		out = append(out, notify.NewWebhook(cfg.AlertWebhookURL, cfg.AlertWebhookSecret))
	} else {
		out = append(out, notify.NewLog("webhook", a.logger))
	}

	if cfg.AMQPURL != "" {
		ch, err := notify.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("connecting alert exchange: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			ch.Close()
			return nil
		})
		out = append(out, ch)
	} else {
		out = append(out, notify.NewLog("amqp", a.logger))
	}

	return out, nil
}

// QueueKeys returns the queue keys served by this process
func (a *App) QueueKeys() []string {
	return a.queueKeys
}

// Handler returns the ingress API
func (a *App) Handler() http.Handler {
	d := httpchi.Dependencies{
		Jobs:            a.Jobs,
		Tenants:         a.Tenants,
		Verifier:        a.Verifier,
		SignatureHeader: a.cfg.SignatureHeader,
		MaxBodyBytes:    a.cfg.MaxBodyBytes,
		QueueKeyPrefix:  a.cfg.QueueKeyPrefix,
		LogLevel:        a.cfg.LogLevel,
	}
	if a.Exporter != nil {
		d.Metrics = a.Exporter.Handler()
	}
	return httpchi.Handlers(d)
}

// RunAlerts routes alerts until ctx is cancelled
func (a *App) RunAlerts(ctx context.Context) error {
	a.Router.Run(ctx, a.Bus.Records())
	return nil
}

// RunWorkers runs the worker pool, the alert router and the maintenance scheduler until
// ctx is cancelled. The router keeps running until the pool has stopped and every alert
// published by in-flight jobs has been routed.
func (a *App) RunWorkers(ctx context.Context) error {
	if a.Pool == nil {
		return &config.ConfigurationError{Key: "EXECUTOR_URL", Reason: "is required to run workers"}
	}

	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	routed := make(chan struct{})
	go func() {
		defer close(routed)
		a.Router.Run(context.WithoutCancel(ctx), a.Bus.Records())
	}()

	err := a.Pool.Run(ctx)

	<-a.Scheduler.Stop().Done()
	a.Bus.Close()
	<-routed
	return err
}

// Close releases every opened resource, newest first
func (a *App) Close(ctx context.Context) error {
	if a.Bus != nil {
		a.Bus.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
