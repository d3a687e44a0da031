package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrInvalid marks a body that passed authentication but cannot become a job
var ErrInvalid = errors.New("invalid payload")

// jobTypePattern validates job types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var jobTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// Envelope is the inbound webhook body
type Envelope struct {
	// Type names the enhancement job to run, e.g. "report.generate"
	Type string `json:"type"`

	// Timestamp is when the sender emitted the event; optional
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Data is handed to the executor untouched
	Data json.RawMessage `json:"data"`
}

// Validate checks the envelope structure
func (e Envelope) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalid)
	}

	if !jobTypePattern.MatchString(e.Type) {
		return fmt.Errorf("%w: type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", ErrInvalid, e.Type)
	}

	if len(e.Data) == 0 {
		return fmt.Errorf("%w: data is required", ErrInvalid)
	}

	if !json.Valid(e.Data) {
		return fmt.Errorf("%w: data must be valid JSON", ErrInvalid)
	}

	return nil
}

// Parse decodes and validates a raw body. Call it only after the signature has been verified.
func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: unmarshaling payload: %v", ErrInvalid, err)
	}

	if err := env.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating payload: %w", err)
	}

	return env, nil
}

// New builds a valid envelope around data, used by the CLI to craft test submissions
func New(jobType string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling data: %w", err)
	}

	env := Envelope{
		Type:      jobType,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	if err := env.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating payload: %w", err)
	}

	return env, nil
}

// Bytes returns the minified JSON encoding
func (e Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}
