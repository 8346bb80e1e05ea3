package driven

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// PostProcessor turns a citation-indexed document into chunks.
// PostProcessors are chained in a pipeline (e.g., chunking, validation).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document with its citation record and returns chunks.
	// A processor that creates chunks (the chunker) receives nil.
	// A processor that checks or modifies chunks receives and returns them.
	Process(ctx context.Context, doc *domain.SourceDocument, record *domain.CitationRecord,
		chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	Process(ctx context.Context, doc *domain.SourceDocument, record *domain.CitationRecord) ([]domain.Chunk, error)
}
