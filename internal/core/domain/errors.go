package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no extractor handles a document format.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or failed to answer.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the external vector index is not reachable.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates an embedding does not match the
	// dimension pinned by its knowledge base.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrQueueFull indicates the ingest queue rejected a document.
	ErrQueueFull = errors.New("ingest queue full")

	// ErrCancelled indicates a document was cancelled before commit.
	ErrCancelled = errors.New("document cancelled")

	// Taxonomy sentinels. The typed errors below match these with errors.Is.

	// ErrStructure marks a malformed structural element.
	ErrStructure = errors.New("structure error")

	// ErrConfiguration marks an invalid configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrDocumentProcessing marks an unrecoverable failure for one document.
	ErrDocumentProcessing = errors.New("document processing error")
)

// StructureError reports a malformed or inconsistent structural element.
// The element is demoted to the document-level anchor; the error is logged,
// never returned to batch callers.
type StructureError struct {
	DocID   string
	Element StructuralElement
	Reason  string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("structure error in %s: %s %q: %s", e.DocID, e.Element.Type, e.Element.Name, e.Reason)
}

// Is reports whether target is ErrStructure.
func (e *StructureError) Is(target error) bool { return target == ErrStructure }

// ConfigurationError reports an invalid chunking, search or processing setting.
// It is fatal at construction time and is never corrected silently.
type ConfigurationError struct {
	// Field is the dotted configuration key, e.g. "chunking.overlap".
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DocumentProcessingError reports that one document could not be processed.
// Batch callers record it against that document and continue.
type DocumentProcessingError struct {
	DocID string
	Stage string
	Err   error
}

func (e *DocumentProcessingError) Error() string {
	return fmt.Sprintf("processing %s failed at %s: %v", e.DocID, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DocumentProcessingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDocumentProcessing.
func (e *DocumentProcessingError) Is(target error) bool { return target == ErrDocumentProcessing }

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NewDocumentProcessingError wraps err as a failure of docID at stage.
func NewDocumentProcessingError(docID, stage string, err error) *DocumentProcessingError {
	return &DocumentProcessingError{DocID: docID, Stage: stage, Err: err}
}

// RetrievalDegradation describes a search that ran with reduced signal.
// It is surfaced on the SearchResponse as a warning, never as an error.
type RetrievalDegradation struct {
	// Component is the failing collaborator, e.g. "embedding".
	Component string

	// Reason is the failure message.
	Reason string
}

// String renders the degradation as a warning line.
func (d RetrievalDegradation) String() string {
	return fmt.Sprintf("%s unavailable, results ranked by keyword score only: %s", d.Component, d.Reason)
}
