package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"resume-screener-go/internal/account"
	"resume-screener-go/internal/jobstatus"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/queue"
	"resume-screener-go/internal/types"
)

// Worker consumes queued batch jobs, runs them through the processor and
// mirrors progress and the terminal result into the job-status store.
type Worker struct {
	proc      *BatchProcessor
	status    jobstatus.Store
	ledger    account.Ledger
	perResume int
	log       zerolog.Logger
}

// NewWorker wires a processor to the status store. The ledger is optional;
// when set, tokens reserved for a batch are refunded if the job fails before
// any screening ran.
func NewWorker(proc *BatchProcessor, status jobstatus.Store, ledger account.Ledger, perResume int) *Worker {
	return &Worker{
		proc:      proc,
		status:    status,
		ledger:    ledger,
		perResume: perResume,
		log:       logger.With("worker"),
	}
}

// HandleMessage is the broker consumer callback. It returns true when the
// message is fully handled and may be acknowledged.
//
// Poison messages (undecodable JSON) are acknowledged after logging; putting
// them back on the queue would loop forever. Status-store write failures at
// the end of a run also acknowledge, because redelivery would re-screen the
// whole batch against a possibly healthy store.
func (w *Worker) HandleMessage(body []byte) bool {
	var msg queue.BatchJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		w.log.Error().Err(err).Msg("discarding undecodable batch message")
		return true
	}

	ctx := context.Background()
	w.log.Info().
		Str("task_id", msg.TaskID).
		Int("files", len(msg.Files)).
		Str("user_id", msg.UserID).
		Msg("batch job received")

	files := DecodeFiles(msg.Files)
	total := len(files)

	progress := func(current, total int, label string) {
		if err := w.status.SetProgress(ctx, msg.TaskID, current, total, label); err != nil {
			w.log.Warn().Str("task_id", msg.TaskID).Err(err).Msg("progress update failed")
		}
	}

	out, err := w.runBatch(ctx, files, msg, progress)
	if err != nil {
		w.log.Error().Str("task_id", msg.TaskID).Err(err).Msg("batch job failed")
		w.refund(ctx, msg.UserID, total)
		if ferr := w.status.Fail(ctx, msg.TaskID, err.Error()); ferr != nil {
			w.log.Error().Str("task_id", msg.TaskID).Err(ferr).Msg("could not record job failure")
		}
		return true
	}

	out.Metadata.TokensUsed = total * w.perResume
	if err := w.status.Succeed(ctx, msg.TaskID, out); err != nil {
		w.log.Error().Str("task_id", msg.TaskID).Err(err).Msg("could not record job result")
	}
	return true
}

// runBatch isolates the pipeline behind a recover so a crashing batch turns
// into a FAILURE state instead of killing the consumer.
func (w *Worker) runBatch(ctx context.Context, files []types.UploadedFile, msg queue.BatchJobMessage, progress ProgressFunc) (out *types.BatchOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("batch panicked: %v", r)
		}
	}()
	return w.proc.ProcessBatch(ctx, files, msg.JobDescription, msg.UserID, progress), nil
}

func (w *Worker) refund(ctx context.Context, userID string, files int) {
	if w.ledger == nil || userID == "" || w.perResume <= 0 {
		return
	}
	amount := files * w.perResume
	if err := w.ledger.Refund(ctx, userID, amount); err != nil {
		w.log.Warn().Str("user_id", userID).Int("amount", amount).Err(err).Msg("token refund failed")
	}
}
