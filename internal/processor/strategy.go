package processor

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/jobstatus"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/queue"
	"resume-screener-go/internal/types"
)

// Batch is one screening request as accepted by the API layer.
type Batch struct {
	Files          []types.UploadedFile
	JobDescription string
	UserID         string
	TokensReserved int
}

// Submission is the outcome of handing a batch to a strategy. Exactly one of
// Output and TaskID is set: synchronous execution yields the result inline,
// queued execution yields a pollable task id.
type Submission struct {
	Output *types.BatchOutput
	TaskID string
}

// Strategy decides how a batch gets executed.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, batch Batch) (*Submission, error)
}

// SyncStrategy runs the batch on the caller's goroutine and returns the
// finished result. Used for small batches and as the fallback when no
// message broker is configured.
type SyncStrategy struct {
	proc *BatchProcessor
}

// NewSyncStrategy wraps a processor for inline execution.
func NewSyncStrategy(proc *BatchProcessor) *SyncStrategy {
	return &SyncStrategy{proc: proc}
}

func (s *SyncStrategy) Name() string { return "sync" }

func (s *SyncStrategy) Execute(ctx context.Context, batch Batch) (*Submission, error) {
	out := s.proc.ProcessBatch(ctx, batch.Files, batch.JobDescription, batch.UserID, nil)
	out.Metadata.TokensUsed = batch.TokensReserved
	return &Submission{Output: out}, nil
}

// Default queue topology for batch jobs, used when the configuration leaves
// the names empty.
const (
	DefaultBatchExchange   = "screener.batch"
	DefaultBatchQueue      = "screener.batch.jobs"
	DefaultBatchRoutingKey = "batch.process"
)

// Topology names the broker primitives batch jobs travel through.
type Topology struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

// TopologyFromConfig fills missing names with the defaults.
func TopologyFromConfig(cfg *config.RabbitMQConfig) Topology {
	t := Topology{
		Exchange:   DefaultBatchExchange,
		Queue:      DefaultBatchQueue,
		RoutingKey: DefaultBatchRoutingKey,
	}
	if cfg == nil {
		return t
	}
	if cfg.BatchExchange != "" {
		t.Exchange = cfg.BatchExchange
	}
	if cfg.BatchQueue != "" {
		t.Queue = cfg.BatchQueue
	}
	if cfg.BatchRoutingKey != "" {
		t.RoutingKey = cfg.BatchRoutingKey
	}
	return t
}

// QueuedStrategy registers a pending job and publishes the batch to the
// message broker. Workers pick it up, run the pipeline and write progress
// and the terminal result back to the status store.
type QueuedStrategy struct {
	mq       queue.MessageQueue
	status   jobstatus.Store
	topology Topology
	log      zerolog.Logger
}

// NewQueuedStrategy declares the batch topology on the broker and returns
// the strategy. Declaration failures surface immediately so the server can
// fall back to synchronous execution at startup.
func NewQueuedStrategy(mq queue.MessageQueue, status jobstatus.Store, topology Topology) (*QueuedStrategy, error) {
	if err := mq.EnsureExchange(topology.Exchange, "direct", true); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := mq.EnsureQueue(topology.Queue, true); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := mq.BindQueue(topology.Queue, topology.Exchange, topology.RoutingKey); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	return &QueuedStrategy{
		mq:       mq,
		status:   status,
		topology: topology,
		log:      logger.With("queued_strategy"),
	}, nil
}

func (s *QueuedStrategy) Name() string { return "queued" }

func (s *QueuedStrategy) Execute(ctx context.Context, batch Batch) (*Submission, error) {
	taskID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate task id: %w", err)
	}

	if err := s.status.Create(ctx, taskID.String(), len(batch.Files)); err != nil {
		return nil, fmt.Errorf("register job: %w", err)
	}

	msg := queue.BatchJobMessage{
		TaskID:         taskID.String(),
		Files:          encodeFiles(batch.Files),
		JobDescription: batch.JobDescription,
		UserID:         batch.UserID,
		SubmittedAt:    time.Now().UTC(),
	}
	if err := s.mq.PublishJSON(ctx, s.topology.Exchange, s.topology.RoutingKey, msg, true); err != nil {
		// The job entry exists but no worker will ever touch it. Mark it
		// failed so polls report the truth instead of a forever-pending job.
		if ferr := s.status.Fail(ctx, taskID.String(), "failed to enqueue batch"); ferr != nil {
			s.log.Error().Str("task_id", taskID.String()).Err(ferr).Msg("could not mark unpublished job failed")
		}
		return nil, fmt.Errorf("publish batch: %w", err)
	}

	s.log.Info().
		Str("task_id", taskID.String()).
		Int("files", len(batch.Files)).
		Str("user_id", batch.UserID).
		Msg("batch enqueued")
	return &Submission{TaskID: taskID.String()}, nil
}

func encodeFiles(files []types.UploadedFile) []queue.BatchFilePayload {
	payloads := make([]queue.BatchFilePayload, 0, len(files))
	for _, f := range files {
		payloads = append(payloads, queue.BatchFilePayload{
			Filename:      f.Filename,
			ContentBase64: base64.StdEncoding.EncodeToString(f.Content),
			FileType:      f.FileType,
		})
	}
	return payloads
}

// DecodeFiles is the worker-side inverse of the payload encoding. Files with
// undecodable content keep their name with empty bytes so the batch-level
// accounting still covers them.
func DecodeFiles(payloads []queue.BatchFilePayload) []types.UploadedFile {
	files := make([]types.UploadedFile, 0, len(payloads))
	for _, p := range payloads {
		content, err := base64.StdEncoding.DecodeString(p.ContentBase64)
		if err != nil {
			content = nil
		}
		files = append(files, types.UploadedFile{
			Filename: p.Filename,
			Content:  content,
			FileType: p.FileType,
		})
	}
	return files
}
