// Package processor implements the screening pipeline: it fans a batch of
// uploaded resumes out to the analysis service under a concurrency bound,
// collects per-file results and folds them into the three category buckets.
//
// The pipeline is fail-soft at every stage. Extraction, archival and
// persistence problems degrade the affected file, never the batch, so the
// number of results always equals the number of inputs.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"resume-screener-go/internal/analysis"
	"resume-screener-go/internal/extractor"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/types"
)

const defaultConcurrency = 5

// RecordStore is the subset of the relational layer the processor needs to
// persist screening outcomes.
type RecordStore interface {
	StoreResumeRecord(ctx context.Context, record *models.ResumeRecord) error
	StoreUploadedFile(ctx context.Context, record *models.UploadedFileRecord) error
}

// ProgressFunc receives the running processed count, the batch total and a
// label naming the file the counter just advanced past.
type ProgressFunc func(current, total int, label string)

// BatchProcessor runs batches of resumes through extract, analyze and
// categorize. Safe for concurrent use; each ProcessBatch call keeps its own
// counters and shares only the analysis semaphore.
type BatchProcessor struct {
	extractor   extractor.TextExtractor
	analyzer    analysis.Analyzer
	objects     storage.ObjectStorage
	records     RecordStore
	concurrency int
	sem         chan struct{}
	log         zerolog.Logger
}

// New builds a processor. Object storage and the record store are optional;
// when absent those stages are skipped rather than failed.
func New(ex extractor.TextExtractor, an analysis.Analyzer, opts ...Option) *BatchProcessor {
	p := &BatchProcessor{
		extractor:   ex,
		analyzer:    an,
		concurrency: defaultConcurrency,
		log:         logger.With("processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sem = make(chan struct{}, p.concurrency)
	return p
}

// ProcessBatch screens every file in the batch against the job description
// and returns the bucketed output. The returned result always contains
// exactly len(files) entries across the three buckets.
//
// progress may be nil. When set it is invoked once per completed file with a
// counter that only moves forward.
func (p *BatchProcessor) ProcessBatch(ctx context.Context, files []types.UploadedFile, jobDescription, userID string, progress ProgressFunc) *types.BatchOutput {
	start := time.Now()
	total := len(files)
	results := make([]types.ResumeResult, total)

	var wg sync.WaitGroup
	var done int64
	for i := range files {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = p.processFile(ctx, files[idx], jobDescription, userID, idx)
			n := atomic.AddInt64(&done, 1)
			if progress != nil {
				progress(int(n), total, fmt.Sprintf("Processing %s", files[idx].Filename))
			}
		}(i)
	}
	wg.Wait()

	batch := types.NewBatchResult()
	for _, r := range results {
		batch.Add(r)
	}

	p.log.Info().
		Int("total", total).
		Int("selected", len(batch.Selected)).
		Int("considered", len(batch.Considered)).
		Int("rejected", len(batch.Rejected)).
		Dur("elapsed", time.Since(start)).
		Str("user_id", userID).
		Msg("batch processed")

	return &types.BatchOutput{
		Data: batch,
		Metadata: types.BatchMetadata{
			TotalUploaded: total,
			ProcessedAt:   time.Now().UTC(),
			UserID:        userID,
		},
	}
}

// processFile runs the per-file pipeline. It never returns an error: any
// failure that cannot be degraded in place collapses into a zero-score
// rejected entry so the batch-level accounting stays intact.
func (p *BatchProcessor) processFile(ctx context.Context, file types.UploadedFile, jobDescription, userID string, index int) (result types.ResumeResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Str("file", file.Filename).
				Interface("panic", r).
				Msg("resume pipeline panicked")
			result = p.rejectedPlaceholder(file, index, fmt.Sprintf("Error processing resume: %v", r))
		}
	}()

	text, err := p.extractor.ExtractText(file.Content, file.DeclaredType())
	if err != nil {
		p.log.Warn().
			Str("file", file.Filename).
			Err(err).
			Msg("text extraction failed")
		return p.rejectedPlaceholder(file, index, fmt.Sprintf("Error processing resume: %v", err))
	}

	contact := extractor.ExtractContact(text)

	storageURL := p.archiveFile(ctx, file, userID)
	p.persistUpload(ctx, file, storageURL, userID)

	a := p.analyzeBounded(ctx, text, jobDescription)

	result = types.ResumeResult{
		ID:          fmt.Sprintf("resume_%d", index),
		Name:        contact.Name,
		Email:       contact.Email,
		Phone:       contact.Phone,
		StorageURL:  storageURL,
		FileName:    file.Filename,
		Score:       a.Score,
		Category:    types.CategoryForScore(a.Score),
		Content:     text,
		Explanation: a.Explanation,
		Strengths:   a.Strengths,
		Weaknesses:  a.Weaknesses,
	}

	p.persistResult(ctx, result, userID)
	return result
}

// analyzeBounded runs the scoring call under the concurrency cap. The slot
// is released in a defer so a panicking analyzer cannot strand it and starve
// the rest of the batch.
func (p *BatchProcessor) analyzeBounded(ctx context.Context, text, jobDescription string) types.Analysis {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()
	return p.analyzer.Analyze(ctx, text, jobDescription)
}

// rejectedPlaceholder is the synthetic entry for a file the pipeline could
// not screen. Zero score, rejected bucket, explanation carrying the cause.
func (p *BatchProcessor) rejectedPlaceholder(file types.UploadedFile, index int, explanation string) types.ResumeResult {
	return types.ResumeResult{
		ID:          fmt.Sprintf("resume_%d", index),
		Name:        extractor.UnknownName,
		FileName:    file.Filename,
		Score:       0.0,
		Category:    types.CategoryRejected,
		Explanation: explanation,
		Strengths:   []string{},
		Weaknesses:  []string{},
	}
}

// archiveFile uploads the raw bytes to object storage. Best effort: a
// missing store or a failed upload just leaves the URL empty.
func (p *BatchProcessor) archiveFile(ctx context.Context, file types.UploadedFile, userID string) string {
	if p.objects == nil || userID == "" {
		return ""
	}
	url, err := p.objects.UploadResume(ctx, userID, file.Filename, file.Content)
	if err != nil {
		p.log.Warn().
			Str("file", file.Filename).
			Err(err).
			Msg("resume archival failed")
		return ""
	}
	return url
}

// persistResult writes the screening outcome to the relational store. Best
// effort for the same reason archival is.
func (p *BatchProcessor) persistResult(ctx context.Context, result types.ResumeResult, userID string) {
	if p.records == nil || userID == "" {
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		p.log.Warn().Err(err).Msg("record id generation failed")
		return
	}
	now := time.Now().UTC()
	record := &models.ResumeRecord{
		ID:             id.String(),
		UserID:         userID,
		CandidateName:  result.Name,
		CandidateEmail: result.Email,
		CandidatePhone: result.Phone,
		FileName:       result.FileName,
		StorageURL:     result.StorageURL,
		Score:          result.Score,
		Category:       string(result.Category),
		Content:        result.Content,
		Explanation:    result.Explanation,
		Strengths:      marshalList(result.Strengths),
		Weaknesses:     marshalList(result.Weaknesses),
		UploadedAt:     now,
	}
	if err := p.records.StoreResumeRecord(ctx, record); err != nil {
		p.log.Warn().
			Str("file", result.FileName).
			Err(err).
			Msg("resume record persistence failed")
	}
}

// persistUpload records the raw upload so per-user file listings reflect
// everything that went through the pipeline, not just scored outcomes.
func (p *BatchProcessor) persistUpload(ctx context.Context, file types.UploadedFile, storageURL, userID string) {
	if p.records == nil || userID == "" {
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		p.log.Warn().Err(err).Msg("upload record id generation failed")
		return
	}
	record := &models.UploadedFileRecord{
		ID:         id.String(),
		UserID:     userID,
		FileName:   file.Filename,
		FileSize:   int64(len(file.Content)),
		FileType:   file.DeclaredType(),
		StorageURL: storageURL,
		Status:     "processed",
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.records.StoreUploadedFile(ctx, record); err != nil {
		p.log.Warn().
			Str("file", file.Filename).
			Err(err).
			Msg("uploaded file record persistence failed")
	}
}

func marshalList(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
