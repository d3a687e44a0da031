package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/marcelsud/jobgate/job"
)

// HTTP posts jobs to an upstream enhancement service
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates an HTTP executor. The worker enforces the execution deadline through
// the request context, so the client carries no timeout of its own.
func NewHTTP(url string) *HTTP {
	return &HTTP{url: url, client: &http.Client{}}
}

type request struct {
	JobID    string          `json:"job_id"`
	TenantID string          `json:"tenant_id"`
	Type     string          `json:"type"`
	Attempt  int             `json:"attempt"`
	Payload  json.RawMessage `json:"payload"`
}

// Execute sends j and classifies the answer: 2xx succeeds, 429, 5xx and network errors
// are transient, any other status is a validation failure
func (h *HTTP) Execute(ctx context.Context, j job.Job) (Result, error) {
	body, err := json.Marshal(request{
		JobID:    j.ID,
		TenantID: j.TenantID,
		Type:     j.Type,
		Attempt:  j.Attempt,
		Payload:  j.Payload,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshaling job: %w: %w", job.ErrValidation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", j.ID)
	req.Header.Set("X-Tenant-ID", j.TenantID)
	req.Header.Set("X-Attempt", strconv.Itoa(j.Attempt))

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, fmt.Errorf("executing job: %w", err)
		}
		return Result{}, fmt.Errorf("executing job: %w: %w", job.ErrTransient, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("reading response: %w: %w", job.ErrTransient, err)
	}

	res := Result{StatusCode: resp.StatusCode}
	if json.Valid(out) {
		res.Output = out
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return res, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return res, fmt.Errorf("upstream returned status %d: %w", resp.StatusCode, job.ErrTransient)
	default:
		return res, fmt.Errorf("upstream returned status %d: %w", resp.StatusCode, job.ErrValidation)
	}
}
