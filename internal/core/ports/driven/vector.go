package driven

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// VectorEntry is one chunk vector written to an external vector index.
type VectorEntry struct {
	ChunkID   string
	Embedding []float32
}

// VectorIndex is an external, cross-process vector store used for stage-one
// candidate generation. Writes replace a document's vectors in one transaction.
type VectorIndex interface {
	// ReplaceDocument atomically swaps every vector of docID in kb.
	ReplaceDocument(ctx context.Context, kb, docID string, entries []VectorEntry) error

	// DeleteDocument removes every vector of docID in kb.
	DeleteDocument(ctx context.Context, kb, docID string) error

	// DropKnowledgeBase removes every vector of kb.
	DropKnowledgeBase(ctx context.Context, kb string) error

	// Search finds the k nearest chunks to the query vector by cosine similarity.
	Search(ctx context.Context, kb string, query []float32, k int) ([]domain.VectorHit, error)

	// Close releases resources.
	Close() error
}
