package driven

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// StoredChunk is a persisted chunk with its embedding.
type StoredChunk struct {
	Chunk     domain.Chunk
	Embedding []float32
}

// KnowledgeBaseStore persists knowledge bases, citation records and chunks.
// Record and chunk writes for one document happen in a single transaction.
type KnowledgeBaseStore interface {
	// CreateKnowledgeBase stores a new knowledge base.
	// Returns domain.ErrAlreadyExists if the name is taken.
	CreateKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error

	// GetKnowledgeBase retrieves a knowledge base by name.
	// Returns domain.ErrNotFound if it does not exist.
	GetKnowledgeBase(ctx context.Context, name string) (*domain.KnowledgeBase, error)

	// ListKnowledgeBases returns all knowledge bases ordered by name.
	ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error)

	// UpdateKnowledgeBase saves dimension/model pinning.
	UpdateKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error

	// DeleteKnowledgeBase removes a knowledge base with its documents and chunks.
	DeleteKnowledgeBase(ctx context.Context, name string) error

	// SaveDocument replaces the record and chunks of update.Record.DocID.
	SaveDocument(ctx context.Context, kb string, update DocumentUpdate) error

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, kb, docID string) error

	// GetDocument returns the stored state of a document.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, kb, docID string) (*domain.IndexedDocument, error)

	// ListDocuments returns the stored state of every document in kb.
	ListDocuments(ctx context.Context, kb string) ([]domain.IndexedDocument, error)

	// GetChunks returns a document's chunks ordered by sequence number.
	GetChunks(ctx context.Context, kb, docID string) ([]StoredChunk, error)

	// Close releases resources.
	Close() error
}
