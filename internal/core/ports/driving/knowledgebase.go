package driving

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// KnowledgeBaseService manages knowledge bases.
type KnowledgeBaseService interface {
	// Create adds a knowledge base pinned to the configured embedding dimension.
	Create(ctx context.Context, name, description string) (*domain.KnowledgeBase, error)

	// List returns every knowledge base.
	List(ctx context.Context) ([]domain.KnowledgeBase, error)

	// Status returns document and chunk counts of a knowledge base.
	Status(ctx context.Context, name string) (*domain.KnowledgeBaseStatus, error)

	// Delete removes a knowledge base and everything indexed into it.
	Delete(ctx context.Context, name string) error
}

// CitationService looks up stored citations.
type CitationService interface {
	// GetRecord returns the citation record of a document.
	GetRecord(ctx context.Context, kb, docID string) (*domain.CitationRecord, error)

	// GetChunks returns a document's chunks in sequence order.
	GetChunks(ctx context.Context, kb, docID string) ([]domain.Chunk, error)

	// Cite renders the citation text of a chunk.
	Cite(ctx context.Context, kb, chunkID string) (string, error)
}
