package processor

import (
	"github.com/rs/zerolog"

	"resume-screener-go/internal/storage"
)

// Option configures a BatchProcessor.
type Option func(*BatchProcessor)

// WithConcurrency sets the analysis semaphore size. Values below one fall
// back to the default of five.
func WithConcurrency(n int) Option {
	return func(p *BatchProcessor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithObjectStorage enables best-effort archival of raw resume bytes.
func WithObjectStorage(store storage.ObjectStorage) Option {
	return func(p *BatchProcessor) {
		p.objects = store
	}
}

// WithRecordStore enables best-effort persistence of screening outcomes.
func WithRecordStore(store RecordStore) Option {
	return func(p *BatchProcessor) {
		p.records = store
	}
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *BatchProcessor) {
		p.log = log
	}
}
