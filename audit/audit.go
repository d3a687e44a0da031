package audit

import (
	"context"
	"time"

	"github.com/marcelsud/jobgate/alert"
	"github.com/marcelsud/jobgate/job"
	"github.com/rs/zerolog"
)

// Outcome is one terminal or intermediate job transition worth keeping
type Outcome struct {
	JobID    string     `json:"job_id"`
	TenantID string     `json:"tenant_id"`
	QueueKey string     `json:"queue_key"`
	Status   job.Status `json:"status"`
	Reason   string     `json:"reason"`
	Attempt  int        `json:"attempt"`
	Error    string     `json:"error,omitempty"`
	At       time.Time  `json:"at"`
}

// Recorder receives job outcomes
type Recorder interface {
	RecordOutcome(ctx context.Context, o Outcome) error
}

// Store keeps job outcomes and alert history
type Store interface {
	Recorder
	alert.History
	Close(ctx context.Context) error
}

// LogStore writes outcomes and alerts to the structured log only
type LogStore struct {
	logger zerolog.Logger
}

// NewLogStore creates a LogStore
func NewLogStore(logger zerolog.Logger) *LogStore {
	return &LogStore{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogStore) RecordOutcome(ctx context.Context, o Outcome) error {
	s.logger.Info().
		Str("job_id", o.JobID).
		Str("tenant_id", o.TenantID).
		Str("status", o.Status.String()).
		Str("reason", o.Reason).
		Int("attempt", o.Attempt).
		Msg("job outcome")
	return nil
}

func (s *LogStore) RecordAlert(ctx context.Context, r alert.Record, result string) error {
	s.logger.Info().
		Str("alert_id", r.ID).
		Str("tenant_id", r.TenantID).
		Str("class", string(r.Class)).
		Str("result", result).
		Msg("alert history")
	return nil
}

func (s *LogStore) Close(ctx context.Context) error { return nil }
