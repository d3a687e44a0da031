package job

import (
	"context"
	"errors"
)

var (
	// ErrQueueEmpty is returned by Pop when the timeout elapses with no job available
	ErrQueueEmpty = errors.New("queue empty")

	// ErrTransient marks failures worth retrying: timeouts, upstream 5xx, lost connections
	ErrTransient = errors.New("transient failure")

	// ErrValidation marks failures caused by the job itself; never retried
	ErrValidation = errors.New("validation failure")

	// ErrTerminal marks a job that exhausted its retries
	ErrTerminal = errors.New("terminal execution failure")
)

// IsTransient reports whether err should be retried
// Deadline overruns count as transient; validation failures never do
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrValidation) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
