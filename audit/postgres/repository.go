package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/audit"
	"github.com/marcelsud/jobgate/job"
)

/* PostgreSQL implementation of audit.Store
 * Tables are created on startup when missing; rows are append-only
 */

const schema = `
CREATE TABLE IF NOT EXISTS job_outcomes (
	id          BIGSERIAL PRIMARY KEY,
	job_id      TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	queue_key   TEXT NOT NULL,
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL,
	attempt     INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_outcomes_tenant ON job_outcomes(tenant_id, recorded_at);
CREATE TABLE IF NOT EXISTS alert_history (
	id          TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	class       TEXT NOT NULL,
	severity    TEXT NOT NULL,
	message     TEXT NOT NULL,
	ratio       DOUBLE PRECISION NOT NULL,
	result      TEXT NOT NULL,
	raised_at   TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_history_tenant ON alert_history(tenant_id, raised_at);
`

type Repository struct {
	db *pgxpool.Pool
}

// NewRepository connects with a pool sized for audit writes and ensures the schema
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	r := &Repository{db: pool}
	if err := r.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// NewRepositoryFromPool wraps an existing pool
func NewRepositoryFromPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// CreateSchema creates the audit tables when missing
func (r *Repository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating audit schema: %w", err)
	}
	return nil
}

// RecordOutcome appends a job outcome
func (r *Repository) RecordOutcome(ctx context.Context, o audit.Outcome) error {
	if o.At.IsZero() {
		o.At = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO job_outcomes (job_id, tenant_id, queue_key, status, reason, attempt, error, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.JobID, o.TenantID, o.QueueKey, o.Status.String(), o.Reason, o.Attempt, o.Error, o.At)
	if err != nil {
		return fmt.Errorf("inserting job outcome: %w", err)
	}
	return nil
}

// RecordAlert appends an alert history row
func (r *Repository) RecordAlert(ctx context.Context, rec alert.Record, result string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO alert_history (id, tenant_id, class, severity, message, ratio, result, raised_at, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.TenantID, string(rec.Class), rec.Severity.String(), rec.Message, rec.Ratio, result, rec.At, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting alert history: %w", err)
	}
	return nil
}

// ListOutcomes returns the outcomes of a job, oldest first
func (r *Repository) ListOutcomes(ctx context.Context, jobID string) ([]audit.Outcome, error) {
	rows, err := r.db.Query(ctx,
		`SELECT job_id, tenant_id, queue_key, status, reason, attempt, error, recorded_at
		 FROM job_outcomes WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("selecting job outcomes: %w", err)
	}
	defer rows.Close()

	var out []audit.Outcome
	for rows.Next() {
		var o audit.Outcome
		var status string
		if err := rows.Scan(&o.JobID, &o.TenantID, &o.QueueKey, &status, &o.Reason, &o.Attempt, &o.Error, &o.At); err != nil {
			return nil, fmt.Errorf("scanning job outcome: %w", err)
		}
		o.Status = job.NewStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountAlerts returns how many alert rows a tenant has per result
func (r *Repository) CountAlerts(ctx context.Context, tenantID string) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT result, COUNT(*) FROM alert_history WHERE tenant_id = $1 GROUP BY result`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("counting alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var result string
		var n int64
		if err := rows.Scan(&result, &n); err != nil {
			return nil, fmt.Errorf("scanning alert count: %w", err)
		}
		counts[result] = int(n)
	}
	return counts, rows.Err()
}

// Close closes the pool
func (r *Repository) Close(ctx context.Context) error {
	r.db.Close()
	return nil
}
