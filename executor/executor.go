package executor

import (
	"context"
	"encoding/json"

	"github.com/marcelsud/jobgate/job"
)

// Result is what the execution collaborator answered
type Result struct {
	StatusCode int             `json:"status_code,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

// Executor runs a job body. Calls may be repeated for the same job id (at-least-once),
// so implementations must be idempotent on job.ID.
// Errors wrapping job.ErrTransient are retried; job.ErrValidation is terminal.
type Executor interface {
	Execute(ctx context.Context, j job.Job) (Result, error)
}

// Func adapts a function to Executor
type Func func(ctx context.Context, j job.Job) (Result, error)

// Execute calls f
func (f Func) Execute(ctx context.Context, j job.Job) (Result, error) {
	return f(ctx, j)
}
