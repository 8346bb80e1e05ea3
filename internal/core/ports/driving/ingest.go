package driving

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// Batch is an in-flight ingest batch.
type Batch interface {
	// ID returns the batch identifier.
	ID() string

	// Cancel stops one document. A document already committing completes.
	// Returns false if the document is unknown or already finished.
	Cancel(docID string) bool

	// CancelAll stops every unfinished document.
	CancelAll()

	// Wait blocks until every document is final and returns the manifest.
	Wait() *domain.BatchManifest
}

// IngestService indexes documents into knowledge bases.
type IngestService interface {
	// Start begins processing docs into kb and returns immediately.
	// Cancelling ctx cancels every unfinished document.
	Start(ctx context.Context, kb string, docs []domain.SourceDocument) (Batch, error)

	// Ingest processes docs and waits for the manifest.
	Ingest(ctx context.Context, kb string, docs []domain.SourceDocument) (*domain.BatchManifest, error)

	// Preview indexes and chunks one document without embedding or committing it.
	Preview(ctx context.Context, doc *domain.SourceDocument) (*domain.CitationRecord, []domain.Chunk, error)

	// Remove deletes a document and its chunks from kb.
	Remove(ctx context.Context, kb, docID string) error

	// Close stops the worker pool.
	Close() error
}
