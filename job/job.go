package job

import (
	"encoding/json"
	"fmt"
	"time"
)

/* Job is a unit of work submitted by a webhook
 * Uses value semantics as it represents data, not behavior
 * Only the worker currently holding a job mutates Attempt
 */
type Job struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	QueueKey    string          `json:"queue_key"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Attempt     int             `json:"attempt"`
}

// Validate checks the envelope fields the pipeline relies on
func (j Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: job id is required", ErrValidation)
	}
	if j.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if j.QueueKey == "" {
		return fmt.Errorf("%w: queue key is required", ErrValidation)
	}
	if j.Attempt < 0 {
		return fmt.Errorf("%w: attempt cannot be negative", ErrValidation)
	}
	return nil
}

/* Marshal encodes a job as field-tagged JSON
 * Decoding ignores unknown fields, so newer producers don't break older consumers
 */
func Marshal(j Job) ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshaling job: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a job previously encoded with Marshal.
// A record that cannot be decoded is a validation failure: retrying it cannot help.
func Unmarshal(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("unmarshaling job: %w: %w", ErrValidation, err)
	}
	return j, nil
}

// QueueKey builds the list key for a tenant class: {prefix}:{class}
func QueueKey(prefix, class string) string {
	return fmt.Sprintf("%s:%s", prefix, class)
}
