package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/budget"
	"github.com/marcelsud/jobgate/scheduler"
	"github.com/marcelsud/jobgate/worker"
	"github.com/spf13/viper"
)

/* Config is read once at startup and handed to the component constructors
 * Keys are flat env-style names; a .env file in the working directory is optional
 */
type Config struct {
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	WebhookSecret         string `mapstructure:"WEBHOOK_SECRET"`
	WebhookSecretPrevious string `mapstructure:"WEBHOOK_SECRET_PREVIOUS"`
	SignatureHeader       string `mapstructure:"SIGNATURE_HEADER"`
	MaxBodyBytes          int64  `mapstructure:"MAX_BODY_BYTES"`
	TenantsFile           string `mapstructure:"TENANTS_FILE"`

	QueueDriver    string `mapstructure:"QUEUE_DRIVER"`
	QueueKeyPrefix string `mapstructure:"QUEUE_KEY_PREFIX"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`

	BudgetDriver       string        `mapstructure:"BUDGET_DRIVER"`
	BudgetDBPath       string        `mapstructure:"BUDGET_DB_PATH"`
	BudgetSourceURL    string        `mapstructure:"BUDGET_SOURCE_URL"`
	BudgetSourceAPIKey string        `mapstructure:"BUDGET_SOURCE_API_KEY"`
	BudgetCacheTTL     time.Duration `mapstructure:"BUDGET_CACHE_TTL"`
	BudgetFetchTimeout time.Duration `mapstructure:"BUDGET_FETCH_TIMEOUT"`
	BudgetStaleMaxAge  time.Duration `mapstructure:"BUDGET_STALE_MAX_AGE"`
	AlertThreshold     float64       `mapstructure:"ALERT_THRESHOLD"`
	GraceThreshold     float64       `mapstructure:"GRACE_THRESHOLD"`
	DefaultLimitUSD    float64       `mapstructure:"DEFAULT_LIMIT_USD"`

	WorkersMin      int           `mapstructure:"WORKERS_MIN"`
	WorkersMax      int           `mapstructure:"WORKERS_MAX"`
	PopTimeout      time.Duration `mapstructure:"POP_TIMEOUT"`
	ExecHardTimeout time.Duration `mapstructure:"EXEC_HARD_TIMEOUT"`
	ExecSoftTimeout time.Duration `mapstructure:"EXEC_SOFT_TIMEOUT"`
	MaxAttempts     int           `mapstructure:"MAX_ATTEMPTS"`
	BackoffBase     time.Duration `mapstructure:"BACKOFF_BASE"`
	BackoffCap      time.Duration `mapstructure:"BACKOFF_CAP"`
	ExecutorURL     string        `mapstructure:"EXECUTOR_URL"`

	DedupTTL           time.Duration `mapstructure:"DEDUP_TTL"`
	AlertBuffer        int           `mapstructure:"ALERT_BUFFER"`
	ChannelRetries     uint64        `mapstructure:"CHANNEL_RETRIES"`
	ChannelTimeout     time.Duration `mapstructure:"CHANNEL_TIMEOUT"`
	SlackWebhookURL    string        `mapstructure:"SLACK_WEBHOOK_URL"`
	SlackChannel       string        `mapstructure:"SLACK_CHANNEL"`
	AlertWebhookURL    string        `mapstructure:"ALERT_WEBHOOK_URL"`
	AlertWebhookSecret string        `mapstructure:"ALERT_WEBHOOK_SECRET"`
	AMQPURL            string        `mapstructure:"AMQP_URL"`
	AMQPExchange       string        `mapstructure:"AMQP_EXCHANGE"`

	AuditDriver      string `mapstructure:"AUDIT_DRIVER"`
	AuditDBPath      string `mapstructure:"AUDIT_DB_PATH"`
	AuditPostgresDSN string `mapstructure:"AUDIT_POSTGRES_DSN"`

	BacklogAlertDepth    int64  `mapstructure:"BACKLOG_ALERT_DEPTH"`
	BacklogCheckSchedule string `mapstructure:"BACKLOG_CHECK_SCHEDULE"`
	CacheSweepSchedule   string `mapstructure:"CACHE_SWEEP_SCHEDULE"`
}

// ConfigurationError is fatal at startup
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

var defaults = map[string]any{
	"PORT":                   "8080",
	"LOG_LEVEL":              "info",
	"SIGNATURE_HEADER":       "X-Signature-256",
	"MAX_BODY_BYTES":         1 << 20,
	"TENANTS_FILE":           "tenants.yaml",
	"QUEUE_DRIVER":           "redis",
	"QUEUE_KEY_PREFIX":       "jobs",
	"REDIS_ADDR":             "localhost:6379",
	"REDIS_DB":               0,
	"BUDGET_DRIVER":          "sqlite",
	"BUDGET_DB_PATH":         "budgets.db",
	"BUDGET_CACHE_TTL":       60 * time.Second,
	"BUDGET_FETCH_TIMEOUT":   2 * time.Second,
	"BUDGET_STALE_MAX_AGE":   24 * time.Hour,
	"ALERT_THRESHOLD":        0.80,
	"GRACE_THRESHOLD":        1.10,
	"DEFAULT_LIMIT_USD":      100.0,
	"WORKERS_MIN":            4,
	"WORKERS_MAX":            16,
	"POP_TIMEOUT":            5 * time.Second,
	"EXEC_HARD_TIMEOUT":      120 * time.Second,
	"EXEC_SOFT_TIMEOUT":      90 * time.Second,
	"MAX_ATTEMPTS":           3,
	"BACKOFF_BASE":           2 * time.Second,
	"BACKOFF_CAP":            600 * time.Second,
	"DEDUP_TTL":              3600 * time.Second,
	"ALERT_BUFFER":           256,
	"CHANNEL_RETRIES":        2,
	"CHANNEL_TIMEOUT":        10 * time.Second,
	"AMQP_EXCHANGE":          "alerts",
	"AUDIT_DRIVER":           "sqlite",
	"AUDIT_DB_PATH":          "audit.db",
	"BACKLOG_ALERT_DEPTH":    1000,
	"BACKLOG_CHECK_SCHEDULE": "@every 1m",
	"CACHE_SWEEP_SCHEDULE":   "@every 10m",
}

// keys without a default still need binding so Unmarshal sees them
var unset = []string{
	"WEBHOOK_SECRET", "WEBHOOK_SECRET_PREVIOUS", "REDIS_PASSWORD",
	"BUDGET_SOURCE_URL", "BUDGET_SOURCE_API_KEY", "EXECUTOR_URL",
	"SLACK_WEBHOOK_URL", "SLACK_CHANNEL", "ALERT_WEBHOOK_URL", "ALERT_WEBHOOK_SECRET",
	"AMQP_URL", "AUDIT_POSTGRES_DSN",
}

// GetConfig loads .env from the working directory when present, then the environment
func GetConfig() (*Config, error) {
	return Load(".env")
}

// Load reads envFile (ignored when missing) and the environment into a Config
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for key := range defaults {
		_ = v.BindEnv(key)
	}
	for _, key := range unset {
		_ = v.BindEnv(key)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// Validate reports the first setting that would make the service misbehave
func (c *Config) Validate() error {
	switch {
	case c.WebhookSecret == "":
		return &ConfigurationError{Key: "WEBHOOK_SECRET", Reason: "is required"}
	case c.AlertThreshold <= 0:
		return &ConfigurationError{Key: "ALERT_THRESHOLD", Reason: "must be positive"}
	case c.AlertThreshold >= c.GraceThreshold:
		return &ConfigurationError{Key: "ALERT_THRESHOLD", Reason: "must be below GRACE_THRESHOLD"}
	case c.DefaultLimitUSD <= 0:
		return &ConfigurationError{Key: "DEFAULT_LIMIT_USD", Reason: "must be positive"}
	case c.QueueDriver != "redis" && c.QueueDriver != "memory":
		return &ConfigurationError{Key: "QUEUE_DRIVER", Reason: fmt.Sprintf("unknown driver %q", c.QueueDriver)}
	case c.BudgetDriver != "sqlite" && c.BudgetDriver != "remote":
		return &ConfigurationError{Key: "BUDGET_DRIVER", Reason: fmt.Sprintf("unknown driver %q", c.BudgetDriver)}
	case c.BudgetDriver == "remote" && c.BudgetSourceURL == "":
		return &ConfigurationError{Key: "BUDGET_SOURCE_URL", Reason: "is required with the remote budget driver"}
	case c.AuditDriver != "sqlite" && c.AuditDriver != "postgres" && c.AuditDriver != "log":
		return &ConfigurationError{Key: "AUDIT_DRIVER", Reason: fmt.Sprintf("unknown driver %q", c.AuditDriver)}
	case c.AuditDriver == "postgres" && c.AuditPostgresDSN == "":
		return &ConfigurationError{Key: "AUDIT_POSTGRES_DSN", Reason: "is required with the postgres audit driver"}
	case c.WorkersMin < 1:
		return &ConfigurationError{Key: "WORKERS_MIN", Reason: "must be at least 1"}
	case c.WorkersMax < c.WorkersMin:
		return &ConfigurationError{Key: "WORKERS_MAX", Reason: "must not be below WORKERS_MIN"}
	case c.MaxAttempts < 1:
		return &ConfigurationError{Key: "MAX_ATTEMPTS", Reason: "must be at least 1"}
	case c.ExecSoftTimeout >= c.ExecHardTimeout:
		return &ConfigurationError{Key: "EXEC_SOFT_TIMEOUT", Reason: "must be below EXEC_HARD_TIMEOUT"}
	case c.MaxBodyBytes <= 0:
		return &ConfigurationError{Key: "MAX_BODY_BYTES", Reason: "must be positive"}
	}
	return nil
}

// Policy returns the admission policy
func (c *Config) Policy() budget.Policy {
	return budget.Policy{
		AlertThreshold: c.AlertThreshold,
		GraceThreshold: c.GraceThreshold,
		DefaultLimit:   c.DefaultLimitUSD,
	}
}

// CacheConfig returns the budget cache settings
func (c *Config) CacheConfig() budget.CacheConfig {
	return budget.CacheConfig{
		TTL:          c.BudgetCacheTTL,
		FetchTimeout: c.BudgetFetchTimeout,
	}
}

// PoolConfig returns the worker pool settings for keys
func (c *Config) PoolConfig(keys ...string) worker.PoolConfig {
	cfg := worker.DefaultPoolConfig(keys...)
	cfg.MinWorkers = c.WorkersMin
	cfg.MaxWorkers = c.WorkersMax
	cfg.PopTimeout = c.PopTimeout
	cfg.HardTimeout = c.ExecHardTimeout
	cfg.SoftTimeout = c.ExecSoftTimeout
	cfg.MaxAttempts = c.MaxAttempts
	cfg.BackoffBase = c.BackoffBase
	cfg.BackoffCap = c.BackoffCap
	return cfg
}

// RouterConfig returns the alert routing settings
func (c *Config) RouterConfig() alert.RouterConfig {
	cfg := alert.DefaultRouterConfig()
	cfg.Retries = c.ChannelRetries
	cfg.Timeout = c.ChannelTimeout
	return cfg
}

// SchedulerConfig returns the maintenance schedules
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		BacklogCheckSchedule: c.BacklogCheckSchedule,
		CacheSweepSchedule:   c.CacheSweepSchedule,
	}
}
