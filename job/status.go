package job

import "fmt"

/* Status represents where a job is in the worker state machine
 * Dequeued -> Admitted -> Executing -> Completed
 * Dequeued -> Blocked -> Failed
 * Executing -> Retrying -> (re-enqueued) | Failed
 */
type Status int

const (
	Dequeued Status = iota + 1
	Admitted
	Executing
	Completed
	Blocked
	Failed
	Retrying
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Dequeued:
		return "dequeued"
	case Admitted:
		return "admitted"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Blocked:
		return "blocked"
	case Failed:
		return "failed"
	case Retrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "dequeued":
		return Dequeued
	case "admitted":
		return Admitted
	case "executing":
		return Executing
	case "completed":
		return Completed
	case "blocked":
		return Blocked
	case "failed":
		return Failed
	case "retrying":
		return Retrying
	default:
		return Dequeued
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Dequeued || s > Retrying {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Completed || s == Failed
}

// Reasons recorded alongside terminal and retry transitions
const (
	ReasonCompleted        = "completed"
	ReasonBudgetExceeded   = "budget-exceeded"
	ReasonValidation       = "validation"
	ReasonTimeout          = "timeout"
	ReasonTransient        = "transient"
	ReasonRetriesExhausted = "retries-exhausted"
	ReasonExecutionFailed  = "execution-failed"
)
