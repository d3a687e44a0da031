package notify

import (
	"context"

	"github.com/marcelsud/jobgate/alert"
	"github.com/rs/zerolog"
)

// Log writes alerts to the structured log. Useful when no external channel is configured.
type Log struct {
	name   string
	logger zerolog.Logger
}

// NewLog creates a log channel registered under name
func NewLog(name string, logger zerolog.Logger) *Log {
	return &Log{name: name, logger: logger.With().Str("component", "alert-log").Logger()}
}

func (l *Log) Name() string { return l.name }

func (l *Log) Send(ctx context.Context, m alert.Message) error {
	l.logger.Warn().
		Str("alert_id", m.Record.ID).
		Str("tenant_id", m.Record.TenantID).
		Str("class", string(m.Record.Class)).
		Str("severity", m.Record.Severity.String()).
		Float64("ratio", m.Record.Ratio).
		Msg(m.Text)
	return nil
}
