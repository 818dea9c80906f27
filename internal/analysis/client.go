// Package analysis wraps the language-model service that scores resumes
// against a job description.
//
// The client is deliberately fail-open: transport errors, timeouts and
// malformed model output all collapse into a zero-score Analysis with an
// explanatory message. One bad resume must never abort a batch.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/ratelimit"
	"resume-screener-go/internal/types"
)

// Analyzer is the interface the batch processor consumes.
type Analyzer interface {
	Analyze(ctx context.Context, resumeText, jobDescription string) types.Analysis
}

// CompanyInfo is what the model extracts from a job description for email
// personalization.
type CompanyInfo struct {
	CompanyName   string   `json:"company_name"`
	PositionTitle string   `json:"position_title"`
	Department    string   `json:"department"`
	Location      string   `json:"location"`
	KeySkills     []string `json:"key_skills"`
}

// DefaultCompanyInfo is the placeholder used when extraction fails.
func DefaultCompanyInfo() CompanyInfo {
	return CompanyInfo{
		CompanyName:   "Our Company",
		PositionTitle: "the Position",
		Department:    "Our Team",
		KeySkills:     []string{},
	}
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	http    *resty.Client
	cfg     config.AnalysisConfig
	limiter *ratelimit.TokenBucket
	log     zerolog.Logger
}

// NewClient builds a client from configuration. A QPM of zero disables the
// rate limiter; the per-call timeout always applies.
func NewClient(cfg config.AnalysisConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)

	c := &Client{
		http: httpClient,
		cfg:  cfg,
		log:  logger.With("analysis"),
	}
	if cfg.QPM > 0 {
		c.limiter = ratelimit.NewTokenBucket(cfg.QPM, 0)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// complete sends one chat-completion request and returns the raw assistant
// message content.
func (c *Client) complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.cfg.Model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat completion request: upstream status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	content := gjson.Get(resp.String(), "choices.0.message.content").String()
	if content == "" {
		return "", errors.New("chat completion request: empty message content")
	}
	return content, nil
}

// Analyze scores one resume against the job description. It never returns an
// error; every failure path produces a zero-score fallback so the caller can
// keep the batch moving.
func (c *Client) Analyze(ctx context.Context, resumeText, jobDescription string) types.Analysis {
	content, err := c.complete(ctx,
		scoringSystemPrompt,
		fmt.Sprintf(scoringUserPromptFormat, jobDescription, truncate(resumeText, c.cfg.MaxInputChars)),
		500, 0.3)
	if err != nil {
		c.log.Warn().Err(err).Msg("analysis call failed, returning zero-score fallback")
		return fallbackAnalysis("Error occurred during analysis: " + err.Error())
	}

	parsed, ok := parseAnalysis(content)
	if !ok {
		c.log.Warn().Str("content", truncate(content, 200)).Msg("analysis response not parseable, returning zero-score fallback")
		return fallbackAnalysis("Unable to parse analysis response")
	}
	return parsed
}

// ExtractCompanyInfo pulls company and position details out of a job
// description. Falls back to generic placeholders on any failure.
func (c *Client) ExtractCompanyInfo(ctx context.Context, jobDescription string) CompanyInfo {
	content, err := c.complete(ctx,
		companyInfoSystemPrompt,
		fmt.Sprintf(companyInfoUserPromptFormat, jobDescription),
		300, 0.1)
	if err != nil {
		c.log.Warn().Err(err).Msg("company info extraction failed, using defaults")
		return DefaultCompanyInfo()
	}

	var info CompanyInfo
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &info); err != nil {
		c.log.Warn().Err(err).Msg("company info response not parseable, using defaults")
		return DefaultCompanyInfo()
	}
	if info.CompanyName == "" {
		info.CompanyName = "Our Company"
	}
	if info.PositionTitle == "" {
		info.PositionTitle = "the Position"
	}
	if info.KeySkills == nil {
		info.KeySkills = []string{}
	}
	return info
}

// Complete exposes a generic completion for collaborators such as the email
// generator.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, 600, 0.7)
}

// parseAnalysis extracts the structured fields from the model output. gjson
// tolerates surrounding prose as long as a JSON object with a score is in
// there somewhere.
func parseAnalysis(content string) (types.Analysis, bool) {
	cleaned := stripCodeFences(content)
	if !gjson.Valid(cleaned) {
		// The model sometimes wraps the object in commentary. Try the
		// outermost brace pair before giving up.
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return types.Analysis{}, false
		}
		cleaned = cleaned[start : end+1]
		if !gjson.Valid(cleaned) {
			return types.Analysis{}, false
		}
	}

	scoreField := gjson.Get(cleaned, "score")
	if !scoreField.Exists() {
		return types.Analysis{}, false
	}

	a := types.Analysis{
		Score:       ClampScore(scoreField.Float()),
		Explanation: gjson.Get(cleaned, "explanation").String(),
		Strengths:   stringSlice(gjson.Get(cleaned, "strengths")),
		Weaknesses:  stringSlice(gjson.Get(cleaned, "weaknesses")),
	}
	if a.Explanation == "" {
		a.Explanation = "No explanation provided"
	}
	return a, true
}

// ClampScore bounds a model-reported score to the valid [0, 10] range.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

func fallbackAnalysis(explanation string) types.Analysis {
	return types.Analysis{
		Score:       0.0,
		Explanation: explanation,
		Strengths:   []string{},
		Weaknesses:  []string{},
	}
}

func stringSlice(result gjson.Result) []string {
	out := []string{}
	for _, item := range result.Array() {
		if s := item.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
