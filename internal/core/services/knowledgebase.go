package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/core/ports/driving"
	"github.com/custodia-labs/citekit/internal/logger"
)

// Ensure the services implement their interfaces.
var (
	_ driving.KnowledgeBaseService = (*KnowledgeBaseService)(nil)
	_ driving.CitationService      = (*CitationService)(nil)
)

// KnowledgeBaseService manages knowledge bases.
type KnowledgeBaseService struct {
	store    driven.KnowledgeBaseStore
	indexes  *IndexSet
	embedder driven.EmbeddingService
}

// NewKnowledgeBaseService creates a knowledge base service. embedder may be
// nil; knowledge bases then pin their dimension on first ingest.
func NewKnowledgeBaseService(
	store driven.KnowledgeBaseStore,
	indexes *IndexSet,
	embedder driven.EmbeddingService,
) *KnowledgeBaseService {
	return &KnowledgeBaseService{store: store, indexes: indexes, embedder: embedder}
}

// Create adds a knowledge base pinned to the embedder's dimension.
func (s *KnowledgeBaseService) Create(ctx context.Context, name, description string) (*domain.KnowledgeBase, error) {
	if !domain.ValidKnowledgeBaseName(name) {
		return nil, fmt.Errorf("%w: knowledge base name %q", domain.ErrInvalidInput, name)
	}
	now := time.Now()
	kb := &domain.KnowledgeBase{
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if s.embedder != nil {
		kb.Dimensions = s.embedder.Dimensions()
		kb.EmbeddingModel = s.embedder.ModelName()
	}
	if err := s.store.CreateKnowledgeBase(ctx, kb); err != nil {
		return nil, fmt.Errorf("create knowledge base %q: %w", name, err)
	}
	logger.Info("Created knowledge base %q (%d dimensions)", name, kb.Dimensions)
	return kb, nil
}

// List returns every knowledge base.
func (s *KnowledgeBaseService) List(ctx context.Context) ([]domain.KnowledgeBase, error) {
	return s.store.ListKnowledgeBases(ctx)
}

// Status returns document and chunk counts of a knowledge base.
func (s *KnowledgeBaseService) Status(ctx context.Context, name string) (*domain.KnowledgeBaseStatus, error) {
	kb, err := s.store.GetKnowledgeBase(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("knowledge base %q: %w", name, err)
	}
	docs, err := s.store.ListDocuments(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	status := &domain.KnowledgeBaseStatus{KnowledgeBase: *kb, DocumentCount: len(docs)}
	for _, d := range docs {
		status.ChunkCount += d.ChunkCount
	}
	return status, nil
}

// Delete removes a knowledge base and everything indexed into it.
func (s *KnowledgeBaseService) Delete(ctx context.Context, name string) error {
	if err := s.store.DeleteKnowledgeBase(ctx, name); err != nil {
		return fmt.Errorf("delete knowledge base %q: %w", name, err)
	}
	if err := s.indexes.Drop(ctx, name); err != nil {
		return err
	}
	logger.Info("Deleted knowledge base %q", name)
	return nil
}

// CitationService looks up stored citation records and chunks.
type CitationService struct {
	store driven.KnowledgeBaseStore
}

// NewCitationService creates a citation service.
func NewCitationService(store driven.KnowledgeBaseStore) *CitationService {
	return &CitationService{store: store}
}

// GetRecord returns the citation record of a document.
func (s *CitationService) GetRecord(ctx context.Context, kb, docID string) (*domain.CitationRecord, error) {
	doc, err := s.store.GetDocument(ctx, kb, docID)
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", docID, err)
	}
	return doc.Record, nil
}

// GetChunks returns a document's chunks in sequence order.
func (s *CitationService) GetChunks(ctx context.Context, kb, docID string) ([]domain.Chunk, error) {
	stored, err := s.store.GetChunks(ctx, kb, docID)
	if err != nil {
		return nil, fmt.Errorf("chunks of %q: %w", docID, err)
	}
	chunks := make([]domain.Chunk, len(stored))
	for i, sc := range stored {
		chunks[i] = sc.Chunk
	}
	return chunks, nil
}

// Cite renders the citation text of a chunk.
func (s *CitationService) Cite(ctx context.Context, kb, chunkID string) (string, error) {
	docID, ok := docIDFromChunkID(chunkID)
	if !ok {
		return "", fmt.Errorf("%w: chunk id %q", domain.ErrInvalidInput, chunkID)
	}
	record, err := s.GetRecord(ctx, kb, docID)
	if err != nil {
		return "", err
	}
	chunks, err := s.GetChunks(ctx, kb, docID)
	if err != nil {
		return "", err
	}
	for _, c := range chunks {
		if c.ChunkID == chunkID {
			return record.CitationText(c.PrimaryAnchor), nil
		}
	}
	return "", fmt.Errorf("chunk %q: %w", chunkID, domain.ErrNotFound)
}

// docIDFromChunkID splits "<doc_id>_chunk_<n>".
func docIDFromChunkID(chunkID string) (string, bool) {
	i := strings.LastIndex(chunkID, "_chunk_")
	if i <= 0 {
		return "", false
	}
	return chunkID[:i], true
}
