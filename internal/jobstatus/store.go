// Package jobstatus tracks the lifecycle of asynchronous batch jobs: a
// key-value store from task id to state, progress and terminal result.
//
// Two implementations exist. The Redis-backed store survives process
// restarts and is shared between the API server and queue workers. The
// in-memory store is the degraded mode for deployments without Redis; its
// state ends with the process, which is a documented trade-off, not a bug.
package jobstatus

import (
	"context"
	"errors"
	"time"

	"resume-screener-go/internal/types"
)

// State is the externally visible job state.
type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Progress carries the monotonic processed counter and a human-readable
// current-item label.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
}

// Job is one tracked batch job.
type Job struct {
	TaskID    string             `json:"task_id"`
	State     State              `json:"state"`
	Progress  Progress           `json:"progress"`
	Result    *types.BatchOutput `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

var (
	// ErrNotFound is returned when a task id is unknown or its entry has
	// expired.
	ErrNotFound = errors.New("jobstatus: task not found")
	// ErrTerminalState is returned on attempts to transition a job that has
	// already succeeded or failed.
	ErrTerminalState = errors.New("jobstatus: job already in terminal state")
)

// Store is the pollable job-status interface.
type Store interface {
	// Create registers a new pending job under the given task id.
	Create(ctx context.Context, taskID string, total int) error
	// SetProgress moves the job to PROGRESS and updates the counter and
	// current-item label. Last writer wins on the label.
	SetProgress(ctx context.Context, taskID string, current, total int, status string) error
	// Succeed moves the job to SUCCESS with its full result. The result
	// payload is immutable afterwards.
	Succeed(ctx context.Context, taskID string, result *types.BatchOutput) error
	// Fail moves the job to FAILURE with an error description.
	Fail(ctx context.Context, taskID string, message string) error
	// Get returns the current job snapshot.
	Get(ctx context.Context, taskID string) (*Job, error)
}
