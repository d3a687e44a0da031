package job

import (
	"context"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * Queue implementations must be safe for concurrent use by many workers;
 * atomicity comes from the backing store, never from locks in the caller
 */

// Pusher appends jobs to a queue
type Pusher interface {
	/* Push appends a job to the head of the list stored at key
	 * Returns only after the backing store acknowledged the write
	 */
	Push(ctx context.Context, key string, j Job) error
	/* PushDelayed parks a job until delay has elapsed
	 * Used for retry backoff; PromoteDue moves it back onto the list
	 */
	PushDelayed(ctx context.Context, key string, j Job, delay time.Duration) error
}

// Popper removes jobs from a queue
type Popper interface {
	/* Pop blocks up to timeout for the oldest job at key
	 * Returns ErrQueueEmpty on timeout and an error wrapping ErrTransient
	 * when the backing store is unreachable, so callers can tell them apart
	 */
	Pop(ctx context.Context, key string, timeout time.Duration) (Job, error)
	// PromoteDue moves delayed jobs whose time has come back onto the list
	PromoteDue(ctx context.Context, key string) (int, error)
}

// Inspector reads queue state without consuming it
type Inspector interface {
	// Peek returns up to count jobs, oldest first, without removing them
	Peek(ctx context.Context, key string, count int) ([]Job, error)
	// Depth returns the number of jobs waiting on the list at key
	Depth(ctx context.Context, key string) (int64, error)
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Queue interface {
	Pusher
	Popper
	Inspector
	Close(ctx context.Context) error
}
