package jobstatus

import (
	"context"
	"sync"
	"time"

	"resume-screener-go/internal/types"
)

// MemoryStore is the in-process Store for deployments without Redis.
// Finished entries expire lazily on read after the retention window.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
	now       func() time.Time // swappable for tests
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store retaining finished jobs for the given
// window.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &MemoryStore{
		jobs:      make(map[string]*Job),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, taskID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.jobs[taskID] = &Job{
		TaskID:    taskID,
		State:     StatePending,
		Progress:  Progress{Total: total},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) SetProgress(_ context.Context, taskID string, current, total int, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[taskID]
	if !ok {
		return ErrNotFound
	}
	if job.State.Terminal() {
		return ErrTerminalState
	}
	job.State = StateProgress
	if current > job.Progress.Current { // the counter only moves forward
		job.Progress.Current = current
	}
	job.Progress.Total = total
	job.Progress.Status = status
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Succeed(_ context.Context, taskID string, result *types.BatchOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[taskID]
	if !ok {
		return ErrNotFound
	}
	if job.State.Terminal() {
		return ErrTerminalState
	}
	job.State = StateSuccess
	job.Result = result
	job.Progress.Current = job.Progress.Total
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, taskID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[taskID]
	if !ok {
		return ErrNotFound
	}
	if job.State.Terminal() {
		return ErrTerminalState
	}
	job.State = StateFailure
	job.Error = message
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	if job.State.Terminal() && s.now().Sub(job.UpdatedAt) > s.retention {
		delete(s.jobs, taskID)
		return nil, ErrNotFound
	}

	snapshot := *job
	return &snapshot, nil
}
