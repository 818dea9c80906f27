package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/account"
	"resume-screener-go/internal/api/handler"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/jobstatus"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/types"
)

// recordingStrategy captures the batch it received and returns a canned
// submission.
type recordingStrategy struct {
	name     string
	batches  []processor.Batch
	response *processor.Submission
	err      error
}

func (s *recordingStrategy) Name() string { return s.name }

func (s *recordingStrategy) Execute(_ context.Context, batch processor.Batch) (*processor.Submission, error) {
	s.batches = append(s.batches, batch)
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

type passthroughExtractor struct{}

func (passthroughExtractor) ExtractText(data []byte, _ string) (string, error) {
	return string(data), nil
}

// denyLedger refuses every reservation.
type denyLedger struct{}

func (denyLedger) Balance(context.Context, string) (*account.Balance, error) {
	return &account.Balance{}, nil
}
func (denyLedger) Reserve(context.Context, string, int) error { return account.ErrInsufficientTokens }
func (denyLedger) Refund(context.Context, string, int) error  { return nil }
func (denyLedger) Credit(context.Context, string, int) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Processing: config.ProcessingConfig{SyncBatchThreshold: 2, MaxConcurrentAnalysis: 5},
		Tokens:     config.TokensConfig{InitialGrant: 100, PerResume: 1},
	}
}

func multipartBatch(t *testing.T, resumeNames []string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, name := range resumeNames {
		part, err := w.CreateFormFile("resumes", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("resume text for " + name))
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func performProcess(t *testing.T, h *handler.ScreeningHandler, body *bytes.Buffer, contentType string) *ut.ResponseRecorder {
	t.Helper()
	engine := server.Default()
	engine.POST("/api/v1/process", h.HandleProcess)
	return ut.PerformRequest(engine.Engine, "POST", "/api/v1/process",
		&ut.Body{Body: bytes.NewReader(body.Bytes()), Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType})
}

func TestHandleProcessSmallBatchRunsSync(t *testing.T) {
	syncStrat := &recordingStrategy{name: "sync", response: &processor.Submission{
		Output: &types.BatchOutput{Data: types.NewBatchResult()},
	}}
	queuedStrat := &recordingStrategy{name: "queued", response: &processor.Submission{TaskID: "t-1"}}

	h := handler.NewScreeningHandler(testConfig(), passthroughExtractor{}, syncStrat, queuedStrat,
		&account.UnlimitedLedger{}, jobstatus.NewMemoryStore(time.Hour))

	body, contentType := multipartBatch(t, []string{"a.txt", "b.txt"}, map[string]string{
		"job_description": "Go engineer",
	})
	w := performProcess(t, h, body, contentType)

	assert.Equal(t, 200, w.Code)
	require.Len(t, syncStrat.batches, 1)
	assert.Empty(t, queuedStrat.batches)
	assert.Equal(t, "Go engineer", syncStrat.batches[0].JobDescription)
	assert.Len(t, syncStrat.batches[0].Files, 2)
}

func TestHandleProcessLargeBatchIsQueued(t *testing.T) {
	syncStrat := &recordingStrategy{name: "sync", response: &processor.Submission{
		Output: &types.BatchOutput{Data: types.NewBatchResult()},
	}}
	queuedStrat := &recordingStrategy{name: "queued", response: &processor.Submission{TaskID: "task-42"}}

	h := handler.NewScreeningHandler(testConfig(), passthroughExtractor{}, syncStrat, queuedStrat,
		&account.UnlimitedLedger{}, jobstatus.NewMemoryStore(time.Hour))

	body, contentType := multipartBatch(t, []string{"a.txt", "b.txt", "c.txt"}, map[string]string{
		"job_description": "Go engineer",
	})
	w := performProcess(t, h, body, contentType)

	assert.Equal(t, 202, w.Code)
	assert.Empty(t, syncStrat.batches)
	require.Len(t, queuedStrat.batches, 1)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "task-42", resp["task_id"])
	assert.Equal(t, "processing", resp["status"])
	assert.EqualValues(t, 3, resp["total_resumes"])
}

func TestHandleProcessNoBrokerFallsBackToSync(t *testing.T) {
	syncStrat := &recordingStrategy{name: "sync", response: &processor.Submission{
		Output: &types.BatchOutput{Data: types.NewBatchResult()},
	}}

	h := handler.NewScreeningHandler(testConfig(), passthroughExtractor{}, syncStrat, nil,
		&account.UnlimitedLedger{}, jobstatus.NewMemoryStore(time.Hour))

	body, contentType := multipartBatch(t, []string{"a.txt", "b.txt", "c.txt"}, map[string]string{
		"job_description": "Go engineer",
	})
	w := performProcess(t, h, body, contentType)

	assert.Equal(t, 200, w.Code)
	require.Len(t, syncStrat.batches, 1)
	assert.Len(t, syncStrat.batches[0].Files, 3)
}

func TestHandleProcessValidation(t *testing.T) {
	syncStrat := &recordingStrategy{name: "sync"}
	h := handler.NewScreeningHandler(testConfig(), passthroughExtractor{}, syncStrat, nil,
		&account.UnlimitedLedger{}, jobstatus.NewMemoryStore(time.Hour))

	// No resumes at all.
	body, contentType := multipartBatch(t, nil, map[string]string{"job_description": "jd"})
	w := performProcess(t, h, body, contentType)
	assert.Equal(t, 400, w.Code)

	// Resumes but no job description.
	body, contentType = multipartBatch(t, []string{"a.txt"}, nil)
	w = performProcess(t, h, body, contentType)
	assert.Equal(t, 400, w.Code)
	assert.Empty(t, syncStrat.batches)
}

func TestHandleProcessInsufficientTokens(t *testing.T) {
	syncStrat := &recordingStrategy{name: "sync"}
	h := handler.NewScreeningHandler(testConfig(), passthroughExtractor{}, syncStrat, nil,
		denyLedger{}, jobstatus.NewMemoryStore(time.Hour))

	body, contentType := multipartBatch(t, []string{"a.txt"}, map[string]string{
		"job_description": "jd",
		"user_id":         "user-1",
	})
	w := performProcess(t, h, body, contentType)

	assert.Equal(t, 402, w.Code)
	assert.Empty(t, syncStrat.batches)
}

func TestHandleProcessAnonymousSkipsLedger(t *testing.T) {
	syncStrat := &recordingStrategy{name: "sync", response: &processor.Submission{
		Output: &types.BatchOutput{Data: types.NewBatchResult()},
	}}
	// denyLedger would 402 if consulted; without user_id it must not be.
	h := handler.NewScreeningHandler(testConfig(), passthroughExtractor{}, syncStrat, nil,
		denyLedger{}, jobstatus.NewMemoryStore(time.Hour))

	body, contentType := multipartBatch(t, []string{"a.txt"}, map[string]string{
		"job_description": "jd",
	})
	w := performProcess(t, h, body, contentType)

	assert.Equal(t, 200, w.Code)
	require.Len(t, syncStrat.batches, 1)
	assert.Zero(t, syncStrat.batches[0].TokensReserved)
}

func TestHandleStatus(t *testing.T) {
	store := jobstatus.NewMemoryStore(time.Hour)
	require.NoError(t, store.Create(context.Background(), "task-1", 5))
	require.NoError(t, store.SetProgress(context.Background(), "task-1", 2, 5, "Processing c.pdf"))

	h := handler.NewScreeningHandler(testConfig(), passthroughExtractor{},
		&recordingStrategy{name: "sync"}, nil, &account.UnlimitedLedger{}, store)

	engine := server.Default()
	engine.GET("/api/v1/process/status/:task_id", h.HandleStatus)

	w := ut.PerformRequest(engine.Engine, "GET", "/api/v1/process/status/task-1", nil)
	assert.Equal(t, 200, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PROGRESS", resp["state"])
	assert.EqualValues(t, 2, resp["current"])
	assert.EqualValues(t, 5, resp["total"])
	assert.Equal(t, "Processing c.pdf", resp["status"])

	w = ut.PerformRequest(engine.Engine, "GET", "/api/v1/process/status/no-such-task", nil)
	assert.Equal(t, 404, w.Code)
}

func TestHandleStatusTerminalResult(t *testing.T) {
	store := jobstatus.NewMemoryStore(time.Hour)
	require.NoError(t, store.Create(context.Background(), "task-2", 1))
	out := &types.BatchOutput{Data: types.NewBatchResult()}
	out.Data.Add(types.ResumeResult{FileName: "a.txt", Score: 8.0, Category: types.CategorySelected})
	require.NoError(t, store.Succeed(context.Background(), "task-2", out))

	h := handler.NewScreeningHandler(testConfig(), passthroughExtractor{},
		&recordingStrategy{name: "sync"}, nil, &account.UnlimitedLedger{}, store)

	engine := server.Default()
	engine.GET("/api/v1/process/status/:task_id", h.HandleStatus)

	// Two polls must answer identically.
	for i := 0; i < 2; i++ {
		w := ut.PerformRequest(engine.Engine, "GET", "/api/v1/process/status/task-2", nil)
		assert.Equal(t, 200, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "SUCCESS", resp["state"])
		require.NotNil(t, resp["result"])
	}
}
