package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/types"
)

// stubExtractor returns the raw bytes as text and fails for filenames listed
// in failing.
type stubExtractor struct {
	failing map[string]bool
}

func (e *stubExtractor) ExtractText(data []byte, _ string) (string, error) {
	text := string(data)
	if e.failing[text] {
		return "", errors.New("corrupt document")
	}
	return text, nil
}

// scoreAnalyzer maps resume text to a fixed score and tracks the number of
// concurrently running calls.
type scoreAnalyzer struct {
	scores   map[string]float64
	delay    time.Duration
	inflight int64
	peak     int64
	mu       sync.Mutex
}

func (a *scoreAnalyzer) Analyze(_ context.Context, resumeText, _ string) types.Analysis {
	n := atomic.AddInt64(&a.inflight, 1)
	a.mu.Lock()
	if n > a.peak {
		a.peak = n
	}
	a.mu.Unlock()
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	atomic.AddInt64(&a.inflight, -1)

	score, ok := a.scores[resumeText]
	if !ok {
		return types.Analysis{Score: 0.0, Explanation: "Analysis failed: upstream unavailable"}
	}
	return types.Analysis{
		Score:       score,
		Explanation: fmt.Sprintf("scored %.1f", score),
		Strengths:   []string{"relevant experience"},
		Weaknesses:  []string{},
	}
}

func file(name, text string) types.UploadedFile {
	return types.UploadedFile{Filename: name, Content: []byte(text), FileType: "txt"}
}

func TestProcessBatchBuckets(t *testing.T) {
	an := &scoreAnalyzer{scores: map[string]float64{
		"alice": 8.5,
		"bob":   5.0,
		"carol": 2.0,
		"dave":  7.0,
		"erin":  4.0,
	}}
	p := New(&stubExtractor{}, an)

	out := p.ProcessBatch(context.Background(), []types.UploadedFile{
		file("alice.txt", "alice"),
		file("bob.txt", "bob"),
		file("carol.txt", "carol"),
		file("dave.txt", "dave"),
		file("erin.txt", "erin"),
	}, "backend engineer", "", nil)

	require.NotNil(t, out.Data)
	assert.Equal(t, 5, out.Data.Total())
	assert.Len(t, out.Data.Selected, 2)   // 8.5 and the boundary 7.0
	assert.Len(t, out.Data.Considered, 2) // 5.0 and the boundary 4.0
	assert.Len(t, out.Data.Rejected, 1)
	assert.Equal(t, 5, out.Metadata.TotalUploaded)
}

func TestProcessBatchConcurrencyBound(t *testing.T) {
	an := &scoreAnalyzer{scores: map[string]float64{}, delay: 20 * time.Millisecond}
	for i := 0; i < 37; i++ {
		an.scores[strconv.Itoa(i)] = 5.0
	}
	p := New(&stubExtractor{}, an, WithConcurrency(5))

	files := make([]types.UploadedFile, 0, 37)
	for i := 0; i < 37; i++ {
		files = append(files, file(fmt.Sprintf("r%d.txt", i), strconv.Itoa(i)))
	}

	out := p.ProcessBatch(context.Background(), files, "jd", "", nil)

	assert.Equal(t, 37, out.Data.Total())
	assert.LessOrEqual(t, an.peak, int64(5))
	assert.Greater(t, an.peak, int64(1))
}

func TestProcessBatchExtractionFailureIsolated(t *testing.T) {
	an := &scoreAnalyzer{scores: map[string]float64{
		"first": 8.0,
		"third": 6.0,
	}}
	ex := &stubExtractor{failing: map[string]bool{"second": true}}
	p := New(ex, an)

	out := p.ProcessBatch(context.Background(), []types.UploadedFile{
		file("first.txt", "first"),
		file("second.txt", "second"),
		file("third.txt", "third"),
	}, "jd", "", nil)

	assert.Equal(t, 3, out.Data.Total())
	require.Len(t, out.Data.Rejected, 1)

	placeholder := out.Data.Rejected[0]
	assert.Equal(t, "second.txt", placeholder.FileName)
	assert.Equal(t, 0.0, placeholder.Score)
	assert.Equal(t, types.CategoryRejected, placeholder.Category)
	assert.Contains(t, strings.ToLower(placeholder.Explanation), "error")
}

func TestProcessBatchAnalyzerAlwaysFails(t *testing.T) {
	// An empty score map makes every call return the zero-score fallback.
	an := &scoreAnalyzer{scores: map[string]float64{}}
	p := New(&stubExtractor{}, an)

	out := p.ProcessBatch(context.Background(), []types.UploadedFile{
		file("a.txt", "a"),
		file("b.txt", "b"),
		file("c.txt", "c"),
	}, "jd", "", nil)

	assert.Equal(t, 3, out.Data.Total())
	assert.Empty(t, out.Data.Selected)
	assert.Empty(t, out.Data.Considered)
	require.Len(t, out.Data.Rejected, 3)
	for _, r := range out.Data.Rejected {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestProcessBatchProgressCallback(t *testing.T) {
	an := &scoreAnalyzer{scores: map[string]float64{"x": 5.0}}
	p := New(&stubExtractor{}, an)

	var mu sync.Mutex
	var counts []int
	progress := func(current, total int, label string) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, current)
		assert.Equal(t, 4, total)
		assert.Contains(t, label, "Processing ")
	}

	files := []types.UploadedFile{
		file("1.txt", "x"), file("2.txt", "x"), file("3.txt", "x"), file("4.txt", "x"),
	}
	p.ProcessBatch(context.Background(), files, "jd", "", progress)

	require.Len(t, counts, 4)
	seen := map[int]bool{}
	for _, c := range counts {
		assert.GreaterOrEqual(t, c, 1)
		assert.LessOrEqual(t, c, 4)
		seen[c] = true
	}
	// Every count value is reported exactly once; ordering across goroutines
	// is not guaranteed but the final report is always the total.
	assert.Len(t, seen, 4)
}

// panicAnalyzer blows up on every call.
type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(context.Context, string, string) types.Analysis {
	panic("scoring backend went away")
}

func TestProcessBatchAnalyzerPanicReleasesSlot(t *testing.T) {
	// Three files through two slots: if a panic leaked its slot the third
	// file would block forever waiting for one.
	p := New(&stubExtractor{}, panicAnalyzer{}, WithConcurrency(2))

	files := []types.UploadedFile{
		file("a.txt", "a"),
		file("b.txt", "b"),
		file("c.txt", "c"),
	}

	done := make(chan *types.BatchOutput, 1)
	go func() {
		done <- p.ProcessBatch(context.Background(), files, "jd", "", nil)
	}()

	select {
	case out := <-done:
		assert.Equal(t, 3, out.Data.Total())
		require.Len(t, out.Data.Rejected, 3)
		for _, r := range out.Data.Rejected {
			assert.Equal(t, 0.0, r.Score)
			assert.Contains(t, r.Explanation, "Error processing resume")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not finish; a semaphore slot was lost")
	}
}

// recordingStore captures persistence calls.
type recordingStore struct {
	mu      sync.Mutex
	resumes []string
	uploads []int64
}

func (s *recordingStore) StoreResumeRecord(_ context.Context, r *models.ResumeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes = append(s.resumes, r.FileName)
	return nil
}

func (s *recordingStore) StoreUploadedFile(_ context.Context, r *models.UploadedFileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, r.FileSize)
	return nil
}

func TestProcessBatchPersistsUploadsAndResults(t *testing.T) {
	an := &scoreAnalyzer{scores: map[string]float64{"hello": 8.0}}
	store := &recordingStore{}
	p := New(&stubExtractor{}, an, WithRecordStore(store))

	p.ProcessBatch(context.Background(), []types.UploadedFile{
		file("cv.txt", "hello"),
	}, "jd", "user-1", nil)

	require.Len(t, store.resumes, 1)
	assert.Equal(t, "cv.txt", store.resumes[0])
	require.Len(t, store.uploads, 1)
	assert.Equal(t, int64(len("hello")), store.uploads[0])
}

func TestProcessBatchAnonymousSkipsPersistence(t *testing.T) {
	an := &scoreAnalyzer{scores: map[string]float64{"hello": 8.0}}
	store := &recordingStore{}
	p := New(&stubExtractor{}, an, WithRecordStore(store))

	p.ProcessBatch(context.Background(), []types.UploadedFile{
		file("cv.txt", "hello"),
	}, "jd", "", nil)

	assert.Empty(t, store.resumes)
	assert.Empty(t, store.uploads)
}

func TestProcessBatchEmptyInput(t *testing.T) {
	p := New(&stubExtractor{}, &scoreAnalyzer{scores: map[string]float64{}})
	out := p.ProcessBatch(context.Background(), nil, "jd", "", nil)

	require.NotNil(t, out.Data)
	assert.Equal(t, 0, out.Data.Total())
	assert.Equal(t, 0, out.Metadata.TotalUploaded)
}
