package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines the job submission and inspection operations
type UseCase interface {
	Submit(ctx context.Context, tenantID, queueKey, jobType string, payload []byte) (Job, error)
	Inspect(ctx context.Context, queueKey string, count int) (int64, []Job, error)
}

type Service struct {
	Queue Queue
	now   func() time.Time
}

// NewService creates a new job service with dependency injection
func NewService(queue Queue) *Service {
	return &Service{
		Queue: queue,
		now:   time.Now,
	}
}

// Submit builds a job with attempt 0 and pushes it onto queueKey
func (s *Service) Submit(ctx context.Context, tenantID, queueKey, jobType string, payload []byte) (Job, error) {
	j := Job{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		QueueKey:    queueKey,
		Type:        jobType,
		Payload:     payload,
		SubmittedAt: s.now().UTC(),
		Attempt:     0,
	}
	if err := j.Validate(); err != nil {
		return Job{}, fmt.Errorf("validating job: %w", err)
	}

	if err := s.Queue.Push(ctx, queueKey, j); err != nil {
		return Job{}, fmt.Errorf("pushing job: %w", err)
	}
	return j, nil
}

// Inspect returns the depth of queueKey and up to count of its oldest jobs
func (s *Service) Inspect(ctx context.Context, queueKey string, count int) (int64, []Job, error) {
	depth, err := s.Queue.Depth(ctx, queueKey)
	if err != nil {
		return 0, nil, fmt.Errorf("reading queue depth: %w", err)
	}
	if count <= 0 {
		return depth, []Job{}, nil
	}
	jobs, err := s.Queue.Peek(ctx, queueKey, count)
	if err != nil {
		return 0, nil, fmt.Errorf("peeking queue: %w", err)
	}
	return depth, jobs, nil
}
