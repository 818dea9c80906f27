// Package handler holds the HTTP handlers of the screening API. Handlers
// parse and validate the request, delegate to the domain packages and shape
// the response; no screening logic lives here.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"

	"resume-screener-go/internal/account"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/extractor"
	"resume-screener-go/internal/jobstatus"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/types"
)

// ScreeningHandler serves batch submission and status polling.
type ScreeningHandler struct {
	cfg       *config.Config
	extractor extractor.TextExtractor
	sync      processor.Strategy
	queued    processor.Strategy // nil when no broker is deployed
	ledger    account.Ledger
	status    jobstatus.Store
	log       zerolog.Logger
}

// NewScreeningHandler wires the handler. queued may be nil; large batches
// then run synchronously.
func NewScreeningHandler(
	cfg *config.Config,
	ex extractor.TextExtractor,
	syncStrategy processor.Strategy,
	queuedStrategy processor.Strategy,
	ledger account.Ledger,
	status jobstatus.Store,
) *ScreeningHandler {
	return &ScreeningHandler{
		cfg:       cfg,
		extractor: ex,
		sync:      syncStrategy,
		queued:    queuedStrategy,
		ledger:    ledger,
		status:    status,
		log:       logger.With("screening_handler"),
	}
}

// HandleProcess accepts a multipart batch of resumes plus a job description
// and either returns the screened result inline or a pollable task id.
func (h *ScreeningHandler) HandleProcess(ctx context.Context, c *app.RequestContext) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid multipart form"})
		return
	}

	fileHeaders := form.File["resumes"]
	if len(fileHeaders) == 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "no resume files provided"})
		return
	}

	files, err := readUploads(fileHeaders)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	jobDescription, err := h.resolveJobDescription(c)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	userID := c.PostForm("user_id")
	tokensNeeded := len(files) * h.cfg.Tokens.PerResume
	if userID != "" {
		if err := h.ledger.Reserve(ctx, userID, tokensNeeded); err != nil {
			if errors.Is(err, account.ErrInsufficientTokens) {
				c.JSON(consts.StatusPaymentRequired, utils.H{
					"error": fmt.Sprintf("Insufficient tokens. You need %d tokens. Please purchase more tokens.", tokensNeeded),
				})
				return
			}
			c.JSON(consts.StatusInternalServerError, utils.H{"error": "token reservation failed"})
			return
		}
	}

	batch := processor.Batch{
		Files:          files,
		JobDescription: jobDescription,
		UserID:         userID,
	}
	if userID != "" {
		batch.TokensReserved = tokensNeeded
	}

	strategy := h.sync
	if h.queued != nil && len(files) > h.cfg.Processing.SyncBatchThreshold {
		strategy = h.queued
	}

	sub, err := strategy.Execute(ctx, batch)
	if err != nil && strategy != h.sync {
		// Broker trouble at submission time. Screening inline is slower but
		// never wrong, so degrade instead of bouncing the request.
		h.log.Warn().
			Int("files", len(files)).
			Err(err).
			Msg("queued submission failed, falling back to synchronous processing")
		sub, err = h.sync.Execute(ctx, batch)
	}
	if err != nil {
		h.refund(ctx, userID, batch.TokensReserved)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "batch submission failed"})
		return
	}

	if sub.TaskID != "" {
		c.JSON(consts.StatusAccepted, utils.H{
			"task_id":       sub.TaskID,
			"status":        "processing",
			"total_resumes": len(files),
		})
		return
	}
	c.JSON(consts.StatusOK, sub.Output)
}

// HandleStatus reports the state of a queued batch. Polling is idempotent;
// terminal answers never change until the entry expires.
func (h *ScreeningHandler) HandleStatus(ctx context.Context, c *app.RequestContext) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "missing task id"})
		return
	}

	job, err := h.status.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, jobstatus.ErrNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "task not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "status lookup failed"})
		return
	}

	resp := utils.H{
		"task_id": job.TaskID,
		"state":   job.State,
	}
	switch job.State {
	case jobstatus.StateProgress:
		resp["current"] = job.Progress.Current
		resp["total"] = job.Progress.Total
		resp["status"] = job.Progress.Status
	case jobstatus.StateSuccess:
		resp["result"] = job.Result
	case jobstatus.StateFailure:
		resp["error"] = job.Error
	}
	c.JSON(consts.StatusOK, resp)
}

func (h *ScreeningHandler) refund(ctx context.Context, userID string, amount int) {
	if userID == "" || amount <= 0 {
		return
	}
	if err := h.ledger.Refund(ctx, userID, amount); err != nil {
		h.log.Warn().Str("user_id", userID).Int("amount", amount).Err(err).Msg("token refund failed")
	}
}

// resolveJobDescription prefers an uploaded file over the text field, the
// text field acting as the fallback when file extraction fails.
func (h *ScreeningHandler) resolveJobDescription(c *app.RequestContext) (string, error) {
	text := strings.TrimSpace(c.PostForm("job_description"))

	fileHeader, err := c.FormFile("job_description_file")
	if err == nil && fileHeader != nil {
		content, readErr := readFileHeader(fileHeader)
		if readErr == nil {
			upload := types.UploadedFile{Filename: fileHeader.Filename, Content: content}
			extracted, exErr := h.extractor.ExtractText(content, upload.DeclaredType())
			if exErr == nil && strings.TrimSpace(extracted) != "" {
				return extracted, nil
			}
			h.log.Warn().
				Str("file", fileHeader.Filename).
				Err(exErr).
				Msg("job description file extraction failed")
		}
		if text == "" {
			return "", errors.New("failed to process job description file and no text job description provided")
		}
	}

	if text == "" {
		return "", errors.New("no job description provided")
	}
	return text, nil
}

func readUploads(headers []*multipart.FileHeader) ([]types.UploadedFile, error) {
	files := make([]types.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		content, err := readFileHeader(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, types.UploadedFile{
			Filename: fh.Filename,
			Content:  content,
		})
	}
	return files, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
