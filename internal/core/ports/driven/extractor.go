package driven

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// StructureExtractor turns raw file content into text and a StructureModel.
// Any extractor that can produce both plugs into ingestion; the core never
// branches on format beyond this boundary.
type StructureExtractor interface {
	// Name identifies the extractor.
	Name() string

	// Supports reports whether the extractor handles the file at path.
	Supports(path string) bool

	// Extract produces the document text and structure.
	Extract(ctx context.Context, path string, content []byte) (*domain.SourceDocument, error)
}

// ExtractorRegistry selects an extractor for a path.
type ExtractorRegistry interface {
	// Register adds an extractor. Later registrations take precedence.
	Register(e StructureExtractor)

	// Get returns the extractor for path.
	// Returns domain.ErrUnsupportedType if none matches.
	Get(path string) (StructureExtractor, error)
}
