package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"

	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/storage"
)

const defaultRecordLimit = 100

// RecordsHandler serves the persisted screening history. All endpoints
// answer 503 when the relational store is not deployed.
type RecordsHandler struct {
	db  *storage.MySQL
	log zerolog.Logger
}

// NewRecordsHandler wires the handler. db may be nil in degraded mode.
func NewRecordsHandler(db *storage.MySQL) *RecordsHandler {
	return &RecordsHandler{
		db:  db,
		log: logger.With("records_handler"),
	}
}

func (h *RecordsHandler) available(c *app.RequestContext) bool {
	if h.db == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "persistent storage not configured"})
		return false
	}
	return true
}

// HandleUserResumeData returns the screened resumes stored for a user,
// newest first.
func (h *RecordsHandler) HandleUserResumeData(ctx context.Context, c *app.RequestContext) {
	if !h.available(c) {
		return
	}
	userID := c.Param("user_id")
	records, err := h.db.GetResumeRecords(ctx, userID, limitParam(c))
	if err != nil {
		h.log.Error().Str("user_id", userID).Err(err).Msg("resume record query failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to load resume data"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"user_id": userID,
		"resumes": records,
		"count":   len(records),
	})
}

// HandleUserStats returns the per-bucket totals for a user.
func (h *RecordsHandler) HandleUserStats(ctx context.Context, c *app.RequestContext) {
	if !h.available(c) {
		return
	}
	userID := c.Param("user_id")
	stats, err := h.db.GetUserStats(ctx, userID)
	if err != nil {
		h.log.Error().Str("user_id", userID).Err(err).Msg("stats query failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to load stats"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"user_id": userID,
		"stats":   stats,
	})
}

// HandleUserUploadedFiles returns the upload history for a user.
func (h *RecordsHandler) HandleUserUploadedFiles(ctx context.Context, c *app.RequestContext) {
	if !h.available(c) {
		return
	}
	userID := c.Param("user_id")
	files, err := h.db.GetUploadedFiles(ctx, userID, limitParam(c))
	if err != nil {
		h.log.Error().Str("user_id", userID).Err(err).Msg("uploaded file query failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to load uploaded files"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"user_id": userID,
		"files":   files,
		"count":   len(files),
	})
}

type updateCategoryRequest struct {
	Category string `json:"category"`
}

// HandleUpdateCategory moves a persisted resume to a different bucket. This
// only rewrites the stored record; finished batch outputs are immutable.
func (h *RecordsHandler) HandleUpdateCategory(ctx context.Context, c *app.RequestContext) {
	if !h.available(c) {
		return
	}
	resumeID := c.Param("resume_id")

	var req updateCategoryRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	category, ok := parseCategory(req.Category)
	if !ok {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "category must be selected, considered or rejected"})
		return
	}

	if err := h.db.UpdateResumeCategory(ctx, resumeID, string(category)); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "resume not found"})
			return
		}
		h.log.Error().Str("resume_id", resumeID).Err(err).Msg("category update failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to update category"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"message":  "Resume category updated successfully",
		"id":       resumeID,
		"category": category,
	})
}

// HandleDeleteUploadedFile removes one upload-history entry.
func (h *RecordsHandler) HandleDeleteUploadedFile(ctx context.Context, c *app.RequestContext) {
	if !h.available(c) {
		return
	}
	fileID := c.Param("file_id")
	if err := h.db.DeleteUploadedFile(ctx, fileID); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "file not found"})
			return
		}
		h.log.Error().Str("file_id", fileID).Err(err).Msg("file deletion failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to delete file"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "File deleted successfully", "id": fileID})
}

func limitParam(c *app.RequestContext) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultRecordLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultRecordLimit
	}
	return limit
}
