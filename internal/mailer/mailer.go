// Package mailer generates candidate notification emails and delivers them
// over SMTP. Generation is model-backed with static per-category fallback
// templates, so a dead model endpoint degrades the wording, not the feature.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"resume-screener-go/internal/analysis"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/types"
)

// ContentClient is the slice of the analysis client the generator needs.
type ContentClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
	ExtractCompanyInfo(ctx context.Context, jobDescription string) analysis.CompanyInfo
}

// Generator produces notification email content.
type Generator struct {
	client ContentClient
	log    zerolog.Logger
}

// NewGenerator wraps a content client. A nil client always yields the
// fallback templates.
func NewGenerator(client ContentClient) *Generator {
	return &Generator{
		client: client,
		log:    logger.With("mailer"),
	}
}

// CompanyInfo resolves company details from a job description, or the
// generic placeholder when none is given.
func (g *Generator) CompanyInfo(ctx context.Context, jobDescription string) analysis.CompanyInfo {
	if g.client == nil || strings.TrimSpace(jobDescription) == "" {
		return analysis.DefaultCompanyInfo()
	}
	return g.client.ExtractCompanyInfo(ctx, jobDescription)
}

// Generate writes a personalized email for one candidate. Model failures
// fall back to the static template for the category.
func (g *Generator) Generate(ctx context.Context, category types.Category, candidate Candidate, info analysis.CompanyInfo) string {
	if g.client == nil {
		return FallbackEmail(category, candidate, info)
	}
	content, err := g.client.Complete(ctx, generationSystemPrompt, generationPrompt(category, candidate, info))
	if err != nil || strings.TrimSpace(content) == "" {
		g.log.Warn().
			Str("category", string(category)).
			Str("candidate", candidate.displayName()).
			Err(err).
			Msg("email generation failed, using fallback template")
		return FallbackEmail(category, candidate, info)
	}
	return content
}

// SendResult summarizes a bulk delivery.
type SendResult struct {
	SentCount int      `json:"sent_count"`
	Failed    []string `json:"failed,omitempty"`
}

// sendFunc matches smtp.SendMail, swappable in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers emails through one SMTP relay.
type Sender struct {
	cfg  config.SMTPConfig
	send sendFunc
	log  zerolog.Logger
}

// NewSender builds a sender from configuration.
func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{
		cfg:  cfg,
		send: smtp.SendMail,
		log:  logger.With("smtp"),
	}
}

// Configured reports whether the relay credentials are present.
func (s *Sender) Configured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != ""
}

// SendBulk delivers the same content to every candidate that has an email
// address. Per-recipient failures are collected, not fatal.
func (s *Sender) SendBulk(_ context.Context, candidates []Candidate, content string) SendResult {
	subject, body := SplitSubject(content)
	result := SendResult{}
	for _, c := range candidates {
		if c.Email == "" {
			continue
		}
		if err := s.deliver(c.Email, subject, body); err != nil {
			s.log.Warn().Str("to", c.Email).Err(err).Msg("email delivery failed")
			result.Failed = append(result.Failed, c.Email)
			continue
		}
		result.SentCount++
	}
	return result
}

// SendPersonalized generates and delivers one email per candidate.
func (s *Sender) SendPersonalized(ctx context.Context, g *Generator, category types.Category, candidates []Candidate, info analysis.CompanyInfo) SendResult {
	result := SendResult{}
	for _, c := range candidates {
		if c.Email == "" {
			continue
		}
		subject, body := SplitSubject(g.Generate(ctx, category, c, info))
		if err := s.deliver(c.Email, subject, body); err != nil {
			s.log.Warn().Str("to", c.Email).Err(err).Msg("email delivery failed")
			result.Failed = append(result.Failed, c.Email)
			continue
		}
		result.SentCount++
	}
	return result
}

func (s *Sender) deliver(to, subject, body string) error {
	from := s.cfg.Username
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := s.send(s.cfg.Addr(), auth, from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}
