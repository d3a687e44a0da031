package alert

import (
	"context"
	"fmt"
)

// Message is what a Channel delivers
type Message struct {
	Record Record
	Text   string
}

// NewMessage renders the default text of r
func NewMessage(r Record) Message {
	return Message{
		Record: r,
		Text:   fmt.Sprintf("[%s] %s for tenant %s: %s", r.Severity, r.Class, r.TenantID, r.Message),
	}
}

// Channel is one notification transport. Implementations must be safe for concurrent use.
type Channel interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// History keeps every routed record, including suppressed ones
type History interface {
	RecordAlert(ctx context.Context, r Record, result string) error
}

// Routing results written to History
const (
	ResultDelivered  = "delivered"
	ResultSuppressed = "suppressed"
	ResultFailed     = "failed"
)
