package jobstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"resume-screener-go/internal/types"
)

const taskKeyPrefix = "screener:task:"

// Safety TTL for jobs that never reach a terminal state, e.g. when a worker
// dies mid-batch without marking the job failed.
const pendingTTL = 24 * time.Hour

// redisCommands is the slice of the client the store uses. *redis.Client
// satisfies it; tests substitute an in-memory implementation.
type redisCommands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore is the broker-backed Store. Entries are JSON values under
// screener:task:<id> with a retention TTL applied once the job reaches a
// terminal state.
type RedisStore struct {
	client    redisCommands
	retention time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redisCommands, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisStore{client: client, retention: retention}
}

func taskKey(taskID string) string {
	return taskKeyPrefix + taskID
}

func (s *RedisStore) save(ctx context.Context, job *Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.TaskID, err)
	}
	if err := s.client.Set(ctx, taskKey(job.TaskID), data, ttl).Err(); err != nil {
		return fmt.Errorf("write job %s: %w", job.TaskID, err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, taskID string) (*Job, error) {
	data, err := s.client.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", taskID, err)
	}
	job := &Job{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", taskID, err)
	}
	return job, nil
}

func (s *RedisStore) Create(ctx context.Context, taskID string, total int) error {
	now := time.Now()
	return s.save(ctx, &Job{
		TaskID:    taskID,
		State:     StatePending,
		Progress:  Progress{Total: total},
		CreatedAt: now,
		UpdatedAt: now,
	}, pendingTTL)
}

// SetProgress updates the job's counter and label. Each job is written by the
// single worker that owns it, so a read-modify-write without cross-job
// coordination is sufficient here.
func (s *RedisStore) SetProgress(ctx context.Context, taskID string, current, total int, status string) error {
	job, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return ErrTerminalState
	}
	job.State = StateProgress
	if current > job.Progress.Current {
		job.Progress.Current = current
	}
	job.Progress.Total = total
	job.Progress.Status = status
	job.UpdatedAt = time.Now()
	return s.save(ctx, job, pendingTTL)
}

func (s *RedisStore) Succeed(ctx context.Context, taskID string, result *types.BatchOutput) error {
	job, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return ErrTerminalState
	}
	job.State = StateSuccess
	job.Result = result
	job.Progress.Current = job.Progress.Total
	job.UpdatedAt = time.Now()
	return s.save(ctx, job, s.retention)
}

func (s *RedisStore) Fail(ctx context.Context, taskID string, message string) error {
	job, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return ErrTerminalState
	}
	job.State = StateFailure
	job.Error = message
	job.UpdatedAt = time.Now()
	return s.save(ctx, job, s.retention)
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (*Job, error) {
	return s.load(ctx, taskID)
}
