package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/analysis"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/types"
)

type stubContentClient struct {
	content string
	err     error
	info    analysis.CompanyInfo
}

func (c *stubContentClient) Complete(context.Context, string, string) (string, error) {
	return c.content, c.err
}

func (c *stubContentClient) ExtractCompanyInfo(context.Context, string) analysis.CompanyInfo {
	return c.info
}

func TestGenerateUsesModelContent(t *testing.T) {
	g := NewGenerator(&stubContentClient{content: "Subject: Hi\n\nWelcome aboard."})
	out := g.Generate(context.Background(), types.CategorySelected, Candidate{Name: "Ada"}, analysis.DefaultCompanyInfo())
	assert.Equal(t, "Subject: Hi\n\nWelcome aboard.", out)
}

func TestGenerateFallsBackOnError(t *testing.T) {
	g := NewGenerator(&stubContentClient{err: errors.New("model down")})
	info := analysis.CompanyInfo{CompanyName: "Acme", PositionTitle: "Go Engineer"}

	out := g.Generate(context.Background(), types.CategoryRejected, Candidate{Name: "Ada Lovelace"}, info)
	assert.Contains(t, out, "Dear Ada Lovelace")
	assert.Contains(t, out, "Go Engineer at Acme")
	assert.Contains(t, out, "move forward with other candidates")
}

func TestGenerateNilClient(t *testing.T) {
	g := NewGenerator(nil)
	out := g.Generate(context.Background(), types.CategoryConsidered, Candidate{}, analysis.DefaultCompanyInfo())
	assert.Contains(t, out, "Dear Candidate")
	assert.Contains(t, out, "under consideration")
}

func TestFallbackEmailPerCategory(t *testing.T) {
	info := analysis.DefaultCompanyInfo()
	cases := []struct {
		category types.Category
		marker   string
	}{
		{types.CategorySelected, "Selected for the Next Round"},
		{types.CategoryRejected, "Application Status Update"},
		{types.CategoryConsidered, "Under Consideration"},
	}
	for _, tc := range cases {
		out := FallbackEmail(tc.category, Candidate{Name: "Unknown"}, info)
		assert.Contains(t, out, tc.marker)
		assert.Contains(t, out, "Dear Candidate")
	}
}

func TestSplitSubject(t *testing.T) {
	subject, body := SplitSubject("Subject: Good News\n\nDear Ada,\nWelcome.")
	assert.Equal(t, "Good News", subject)
	assert.Equal(t, "Dear Ada,\nWelcome.", body)

	subject, body = SplitSubject("no subject line here")
	assert.Equal(t, defaultSubject, subject)
	assert.Equal(t, "no subject line here", body)
}

func TestSendBulk(t *testing.T) {
	var sent []string
	s := NewSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "hr@example.com", Password: "secret"})
	s.send = func(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		if to[0] == "broken@example.com" {
			return errors.New("mailbox full")
		}
		sent = append(sent, to[0])
		assert.True(t, strings.Contains(string(msg), "Subject: Hello"))
		return nil
	}

	result := s.SendBulk(context.Background(), []Candidate{
		{Name: "Ada", Email: "ada@example.com"},
		{Name: "NoEmail"},
		{Name: "Broken", Email: "broken@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
	}, "Subject: Hello\n\nBody text.")

	assert.Equal(t, 2, result.SentCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "broken@example.com", result.Failed[0])
	assert.Equal(t, []string{"ada@example.com", "bob@example.com"}, sent)
}

func TestSenderConfigured(t *testing.T) {
	assert.False(t, NewSender(config.SMTPConfig{}).Configured())
	assert.True(t, NewSender(config.SMTPConfig{
		Host: "smtp.example.com", Username: "u", Password: "p",
	}).Configured())
}
