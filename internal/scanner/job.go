package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a scan job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a scan running in the background. Once started it runs to
// completion; cancelling the context passed to the async entry point only
// matters while the job is still queued for a slot.
type Job[T any] struct {
	ID   string
	Name string

	done chan struct{}

	mu          sync.Mutex
	status      JobStatus
	result      T
	err         error
	createdAt   time.Time
	completedAt time.Time
}

func newJob[T any](name string) *Job[T] {
	return &Job[T]{
		ID:        uuid.New().String(),
		Name:      name,
		done:      make(chan struct{}),
		status:    JobStatusQueued,
		createdAt: time.Now(),
	}
}

// Done is closed when the job finishes.
func (j *Job[T]) Done() <-chan struct{} {
	return j.done
}

// Status returns the current state.
func (j *Job[T]) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Wait blocks until the job finishes or ctx is done. Giving up on the wait
// does not stop the job.
func (j *Job[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.result, j.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Duration returns how long the job took, or zero while it is running.
func (j *Job[T]) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.completedAt.IsZero() {
		return 0
	}
	return j.completedAt.Sub(j.createdAt)
}

func (j *Job[T]) start() {
	j.mu.Lock()
	j.status = JobStatusRunning
	j.mu.Unlock()
}

func (j *Job[T]) finish(result T, err error, status JobStatus) {
	j.mu.Lock()
	j.result = result
	j.err = err
	j.status = status
	j.completedAt = time.Now()
	j.mu.Unlock()
	close(j.done)
}
