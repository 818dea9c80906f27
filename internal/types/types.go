// Package types holds the domain types shared by the extractor, the batch
// processor, the handlers and the queue worker.
package types

import (
	"strings"
	"time"
)

// Category is one of the three result buckets a screened resume lands in.
type Category string

const (
	CategorySelected   Category = "selected"
	CategoryConsidered Category = "considered"
	CategoryRejected   Category = "rejected"
)

// Score thresholds for bucketing. A resume scoring at or above
// SelectedThreshold is selected, at or above ConsideredThreshold is
// considered, anything below is rejected.
const (
	SelectedThreshold   = 7.0
	ConsideredThreshold = 4.0
)

// CategoryForScore maps a score to its bucket. The mapping is total: every
// float lands somewhere, including the zero score produced by the fail-open
// analysis path.
func CategoryForScore(score float64) Category {
	switch {
	case score >= SelectedThreshold:
		return CategorySelected
	case score >= ConsideredThreshold:
		return CategoryConsidered
	default:
		return CategoryRejected
	}
}

// UploadedFile is one resume as received from the multipart form. It only
// lives for the duration of a batch.
type UploadedFile struct {
	Filename string
	Content  []byte
	FileType string // declared type: "pdf", "doc", "docx", "txt", ...
}

// DeclaredType returns the declared file type, falling back to the filename
// extension when the caller did not set one.
func (f UploadedFile) DeclaredType() string {
	if f.FileType != "" {
		return strings.ToLower(f.FileType)
	}
	if idx := strings.LastIndex(f.Filename, "."); idx >= 0 && idx < len(f.Filename)-1 {
		return strings.ToLower(f.Filename[idx+1:])
	}
	return ""
}

// Analysis is what the language model returns for one resume.
type Analysis struct {
	Score       float64  `json:"score"`
	Explanation string   `json:"explanation"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// ResumeResult is the per-file output of the pipeline. Created once per input
// file and never mutated by the processor afterwards; manual recategorization
// happens only against the persisted record.
type ResumeResult struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone,omitempty"`
	StorageURL  string   `json:"s3_url,omitempty"`
	FileName    string   `json:"fileName"`
	Score       float64  `json:"score"`
	Category    Category `json:"category"`
	Content     string   `json:"content"`
	Explanation string   `json:"explanation"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// BatchResult holds the three buckets of one processed batch.
type BatchResult struct {
	Selected   []ResumeResult `json:"selected"`
	Considered []ResumeResult `json:"considered"`
	Rejected   []ResumeResult `json:"rejected"`
}

// NewBatchResult returns a result with all buckets allocated so they marshal
// as [] instead of null.
func NewBatchResult() *BatchResult {
	return &BatchResult{
		Selected:   []ResumeResult{},
		Considered: []ResumeResult{},
		Rejected:   []ResumeResult{},
	}
}

// Add appends a result to the bucket matching its category.
func (b *BatchResult) Add(r ResumeResult) {
	switch r.Category {
	case CategorySelected:
		b.Selected = append(b.Selected, r)
	case CategoryConsidered:
		b.Considered = append(b.Considered, r)
	default:
		b.Rejected = append(b.Rejected, r)
	}
}

// Total returns the number of results across all buckets.
func (b *BatchResult) Total() int {
	return len(b.Selected) + len(b.Considered) + len(b.Rejected)
}

// BatchMetadata describes a completed batch.
type BatchMetadata struct {
	TotalUploaded int       `json:"total_uploaded"`
	ProcessedAt   time.Time `json:"processed_at"`
	UserID        string    `json:"user_id,omitempty"`
	TokensUsed    int       `json:"tokens_used"`
}

// BatchOutput is the terminal payload of a batch, identical for the
// synchronous response body and the polled async result.
type BatchOutput struct {
	Data     *BatchResult  `json:"data"`
	Metadata BatchMetadata `json:"metadata"`
}
