package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/jobgate/budget"
	"github.com/marcelsud/jobgate/internal/sqlitedb"
)

/* SQLite-backed authoritative budget source
 * Spend is only ever changed by AddSpend, which increments inside the database so concurrent
 * writers cannot lose updates
 */

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS budgets (
		tenant_id       TEXT PRIMARY KEY,
		spend           REAL NOT NULL DEFAULT 0 CHECK (spend >= 0),
		limit_amount    REAL NOT NULL DEFAULT 0,
		alert_threshold REAL NOT NULL DEFAULT 0,
		grace_threshold REAL NOT NULL DEFAULT 0,
		updated_at      DATETIME NOT NULL
	)`,
}

var ErrNotFound = errors.New("budget not found")

type Repository struct {
	db *sql.DB
}

// NewRepository opens the budget database at dbPath
func NewRepository(dbPath string) (*Repository, error) {
	db, err := sqlitedb.Open(dbPath, migrations)
	if err != nil {
		return nil, fmt.Errorf("opening budget database: %w", err)
	}
	return &Repository{db: db}, nil
}

// FetchBudget implements budget.Source. A tenant without a row has spent nothing and
// gets the platform default limit.
func (r *Repository) FetchBudget(ctx context.Context, tenantID string) (budget.State, error) {
	st, err := r.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return budget.State{TenantID: tenantID}, nil
	}
	return st, err
}

// Get returns the stored budget of tenantID
func (r *Repository) Get(ctx context.Context, tenantID string) (budget.State, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, spend, limit_amount, alert_threshold, grace_threshold, updated_at
		 FROM budgets WHERE tenant_id = ?`, tenantID)

	var st budget.State
	err := row.Scan(&st.TenantID, &st.Spend, &st.Limit, &st.AlertThreshold, &st.GraceThreshold, &st.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.State{}, ErrNotFound
	}
	if err != nil {
		return budget.State{}, fmt.Errorf("selecting budget: %w", err)
	}
	return st, nil
}

// List returns every stored budget ordered by tenant
func (r *Repository) List(ctx context.Context) ([]budget.State, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tenant_id, spend, limit_amount, alert_threshold, grace_threshold, updated_at
		 FROM budgets ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("selecting budgets: %w", err)
	}
	defer rows.Close()

	var out []budget.State
	for rows.Next() {
		var st budget.State
		if err := rows.Scan(&st.TenantID, &st.Spend, &st.Limit, &st.AlertThreshold, &st.GraceThreshold, &st.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning budget: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SetLimit creates or updates the tenant's limit and thresholds, keeping its spend
func (r *Repository) SetLimit(ctx context.Context, tenantID string, limit, alertThreshold, graceThreshold float64) error {
	if limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (tenant_id, limit_amount, alert_threshold, grace_threshold, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET
		   limit_amount = excluded.limit_amount,
		   alert_threshold = excluded.alert_threshold,
		   grace_threshold = excluded.grace_threshold,
		   updated_at = excluded.updated_at`,
		tenantID, limit, alertThreshold, graceThreshold, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting budget: %w", err)
	}
	return nil
}

// AddSpend increments the tenant's spend and returns the new total
func (r *Repository) AddSpend(ctx context.Context, tenantID string, amount float64) (float64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("spend increment must not be negative")
	}

	var total float64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO budgets (tenant_id, spend, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET
		   spend = budgets.spend + excluded.spend,
		   updated_at = excluded.updated_at
		 RETURNING spend`,
		tenantID, amount, time.Now().UTC()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("adding spend: %w", err)
	}
	return total, nil
}

// Close closes the database
func (r *Repository) Close(ctx context.Context) error {
	return r.db.Close()
}
