package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/audit"
	"github.com/marcelsud/jobgate/internal/sqlitedb"
	"github.com/marcelsud/jobgate/job"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS job_outcomes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id      TEXT NOT NULL,
		tenant_id   TEXT NOT NULL,
		queue_key   TEXT NOT NULL,
		status      TEXT NOT NULL,
		reason      TEXT NOT NULL,
		attempt     INTEGER NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		recorded_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_outcomes_tenant ON job_outcomes(tenant_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS alert_history (
		id          TEXT NOT NULL,
		tenant_id   TEXT NOT NULL,
		class       TEXT NOT NULL,
		severity    TEXT NOT NULL,
		message     TEXT NOT NULL,
		ratio       REAL NOT NULL,
		result      TEXT NOT NULL,
		raised_at   DATETIME NOT NULL,
		recorded_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_history_tenant ON alert_history(tenant_id, raised_at)`,
}

// Repository is an audit.Store on SQLite
type Repository struct {
	db *sql.DB
}

// NewRepository opens the audit database at dbPath
func NewRepository(dbPath string) (*Repository, error) {
	db, err := sqlitedb.Open(dbPath, migrations)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	return &Repository{db: db}, nil
}

// RecordOutcome appends a job outcome
func (r *Repository) RecordOutcome(ctx context.Context, o audit.Outcome) error {
	if o.At.IsZero() {
		o.At = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO job_outcomes (job_id, tenant_id, queue_key, status, reason, attempt, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.JobID, o.TenantID, o.QueueKey, o.Status.String(), o.Reason, o.Attempt, o.Error, o.At)
	if err != nil {
		return fmt.Errorf("inserting job outcome: %w", err)
	}
	return nil
}

// RecordAlert appends an alert history row
func (r *Repository) RecordAlert(ctx context.Context, rec alert.Record, result string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_history (id, tenant_id, class, severity, message, ratio, result, raised_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, string(rec.Class), rec.Severity.String(), rec.Message, rec.Ratio, result, rec.At, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting alert history: %w", err)
	}
	return nil
}

// ListOutcomes returns the latest outcomes of a job, oldest first
func (r *Repository) ListOutcomes(ctx context.Context, jobID string) ([]audit.Outcome, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT job_id, tenant_id, queue_key, status, reason, attempt, error, recorded_at
		 FROM job_outcomes WHERE job_id = ? ORDER BY id`, jobID)
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
	rows, err := r.db.QueryContext(ctx,
		`SELECT result, COUNT(*) FROM alert_history WHERE tenant_id = ? GROUP BY result`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("counting alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var result string
		var n int
		if err := rows.Scan(&result, &n); err != nil {
			return nil, fmt.Errorf("scanning alert count: %w", err)
		}
		counts[result] = n
	}
	return counts, rows.Err()
}

// Close closes the database
func (r *Repository) Close(ctx context.Context) error {
	return r.db.Close()
}
