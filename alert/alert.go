package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlatformTenant is the tenant id used for alerts that concern the whole platform
const PlatformTenant = "platform"

// Class identifies the kind of notification-worthy event. Dedup is keyed by (tenant, class).
type Class string

const (
	ClassThresholdCrossed Class = "threshold-crossed"
	ClassGraceExceeded    Class = "grace-exceeded"
	ClassInfraDegraded    Class = "infra-degraded"
	ClassRetriesExhausted Class = "retries-exhausted"
)

// Severity drives channel selection in the Router
type Severity int

const (
	Low Severity = iota + 1
	High
	Critical
)

// String converts the severity to a string
func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case High:
		return "high"
	case Critical:
		return "critical"
	}
	return "unknown"
}

// NewSeverity parses a severity name
func NewSeverity(s string) Severity {
	switch s {
	case "low":
		return Low
	case "high":
		return High
	case "critical":
		return Critical
	}
	return Low
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(b []byte) error {
	*s = NewSeverity(string(b))
	return nil
}

// Severity returns the default severity of the class
func (c Class) Severity() Severity {
	switch c {
	case ClassGraceExceeded:
		return Critical
	case ClassInfraDegraded, ClassRetriesExhausted:
		return High
	}
	return Low
}

// Record is one notification-worthy event
type Record struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenant_id"`
	Class    Class     `json:"class"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Ratio    float64   `json:"ratio,omitempty"`
	At       time.Time `json:"at"`
}

// NewRecord builds a record with the class default severity
func NewRecord(tenantID string, class Class, message string, ratio float64) Record {
	return Record{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Class:    class,
		Severity: class.Severity(),
		Message:  message,
		Ratio:    ratio,
		At:       time.Now().UTC(),
	}
}

// DedupKey is the cool-down key for the record
func (r Record) DedupKey() string {
	return DedupKey(r.TenantID, r.Class)
}

// DedupKey formats the cool-down key for a tenant and class
func DedupKey(tenantID string, class Class) string {
	return fmt.Sprintf("alert:dedup:%s:%s", tenantID, class)
}

// Publisher accepts records without blocking the caller
type Publisher interface {
	Publish(r Record) bool
}
