package handler

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"

	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/mailer"
	"resume-screener-go/internal/types"
)

// EmailHandler serves candidate notification generation and delivery.
type EmailHandler struct {
	generator *mailer.Generator
	sender    *mailer.Sender
	log       zerolog.Logger
}

// NewEmailHandler wires the handler.
func NewEmailHandler(generator *mailer.Generator, sender *mailer.Sender) *EmailHandler {
	return &EmailHandler{
		generator: generator,
		sender:    sender,
		log:       logger.With("email_handler"),
	}
}

type generateEmailRequest struct {
	Category       string            `json:"category"`
	JobDescription string            `json:"job_description"`
	CandidateData  *mailer.Candidate `json:"candidate_data"`
}

// HandleGenerateEmail produces one notification email for a category,
// personalized when candidate data and a job description are supplied.
func (h *EmailHandler) HandleGenerateEmail(ctx context.Context, c *app.RequestContext) {
	var req generateEmailRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	category, ok := parseCategory(req.Category)
	if !ok {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "category must be selected, considered or rejected"})
		return
	}

	candidate := mailer.Candidate{}
	if req.CandidateData != nil {
		candidate = *req.CandidateData
	}
	info := h.generator.CompanyInfo(ctx, req.JobDescription)
	content := h.generator.Generate(ctx, category, candidate, info)
	c.JSON(consts.StatusOK, utils.H{"emailContent": content})
}

type sendEmailsRequest struct {
	Resumes      []mailer.Candidate `json:"resumes"`
	EmailContent string             `json:"emailContent"`
}

// HandleSendEmails delivers the same content to every candidate with an
// email address.
func (h *EmailHandler) HandleSendEmails(ctx context.Context, c *app.RequestContext) {
	var req sendEmailsRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	if req.EmailContent == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "emailContent is required"})
		return
	}
	if !h.sender.Configured() {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "email configuration not set"})
		return
	}

	result := h.sender.SendBulk(ctx, req.Resumes, req.EmailContent)
	c.JSON(consts.StatusOK, utils.H{
		"message":    fmt.Sprintf("Emails sent successfully to %d candidates", result.SentCount),
		"sent_count": result.SentCount,
		"failed":     result.Failed,
	})
}

type sendPersonalizedRequest struct {
	JobDescription string             `json:"job_description"`
	Resumes        []mailer.Candidate `json:"resumes"`
	Category       string             `json:"category"`
}

// HandleSendPersonalizedEmails generates a distinct email per candidate and
// delivers them, reporting per-recipient failures.
func (h *EmailHandler) HandleSendPersonalizedEmails(ctx context.Context, c *app.RequestContext) {
	var req sendPersonalizedRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	category, ok := parseCategory(req.Category)
	if !ok {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "category must be selected, considered or rejected"})
		return
	}
	if !h.sender.Configured() {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "email configuration not set"})
		return
	}

	info := h.generator.CompanyInfo(ctx, req.JobDescription)
	result := h.sender.SendPersonalized(ctx, h.generator, category, req.Resumes, info)
	c.JSON(consts.StatusOK, utils.H{
		"message":       fmt.Sprintf("Personalized emails sent to %d candidates", result.SentCount),
		"sent_count":    result.SentCount,
		"failed_emails": result.Failed,
		"company_info":  info,
	})
}

func parseCategory(raw string) (types.Category, bool) {
	switch types.Category(raw) {
	case types.CategorySelected, types.CategoryConsidered, types.CategoryRejected:
		return types.Category(raw), true
	}
	return "", false
}
