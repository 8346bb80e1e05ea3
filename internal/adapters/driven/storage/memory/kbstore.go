package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Ensure KnowledgeBaseStore implements the interface.
var _ driven.KnowledgeBaseStore = (*KnowledgeBaseStore)(nil)

// KnowledgeBaseStore is an in-memory implementation of driven.KnowledgeBaseStore.
type KnowledgeBaseStore struct {
	mu    sync.RWMutex
	bases map[string]*kbData
	now   func() time.Time
}

type kbData struct {
	kb     domain.KnowledgeBase
	docs   map[string]domain.IndexedDocument
	chunks map[string][]driven.StoredChunk
}

// NewKnowledgeBaseStore creates a new in-memory knowledge base store.
func NewKnowledgeBaseStore() *KnowledgeBaseStore {
	return &KnowledgeBaseStore{
		bases: make(map[string]*kbData),
		now:   time.Now,
	}
}

// CreateKnowledgeBase stores a new knowledge base.
func (s *KnowledgeBaseStore) CreateKnowledgeBase(_ context.Context, kb *domain.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bases[kb.Name]; ok {
		return domain.ErrAlreadyExists
	}
	s.bases[kb.Name] = &kbData{
		kb:     *kb,
		docs:   make(map[string]domain.IndexedDocument),
		chunks: make(map[string][]driven.StoredChunk),
	}
	return nil
}

// GetKnowledgeBase retrieves a knowledge base by name.
func (s *KnowledgeBaseStore) GetKnowledgeBase(_ context.Context, name string) (*domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.bases[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	kb := data.kb
	return &kb, nil
}

// ListKnowledgeBases returns all knowledge bases ordered by name.
func (s *KnowledgeBaseStore) ListKnowledgeBases(_ context.Context) ([]domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.KnowledgeBase, 0, len(s.bases))
	for _, data := range s.bases {
		result = append(result, data.kb)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// UpdateKnowledgeBase saves a knowledge base.
func (s *KnowledgeBaseStore) UpdateKnowledgeBase(_ context.Context, kb *domain.KnowledgeBase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.bases[kb.Name]
	if !ok {
		return domain.ErrNotFound
	}
	data.kb = *kb
	return nil
}

// DeleteKnowledgeBase removes a knowledge base and everything in it.
func (s *KnowledgeBaseStore) DeleteKnowledgeBase(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bases[name]; !ok {
		return domain.ErrNotFound
	}
	delete(s.bases, name)
	return nil
}

// SaveDocument replaces the record and chunks of a document.
func (s *KnowledgeBaseStore) SaveDocument(ctx context.Context, kb string, update driven.DocumentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if update.Record == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.bases[kb]
	if !ok {
		return domain.ErrNotFound
	}

	chunks := make([]driven.StoredChunk, len(update.Chunks))
	for i, c := range update.Chunks {
		chunks[i] = driven.StoredChunk{Chunk: c}
		if i < len(update.Embeddings) {
			chunks[i].Embedding = update.Embeddings[i]
		}
	}
	data.docs[update.Record.DocID] = domain.IndexedDocument{
		Record:     update.Record,
		TextHash:   update.TextHash,
		ChunkCount: len(chunks),
		UpdatedAt:  s.now(),
	}
	data.chunks[update.Record.DocID] = chunks
	return nil
}

// DeleteDocument removes a document and its chunks.
func (s *KnowledgeBaseStore) DeleteDocument(_ context.Context, kb, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.bases[kb]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := data.docs[docID]; !ok {
		return domain.ErrNotFound
	}
	delete(data.docs, docID)
	delete(data.chunks, docID)
	return nil
}

// GetDocument returns the stored state of a document.
func (s *KnowledgeBaseStore) GetDocument(_ context.Context, kb, docID string) (*domain.IndexedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.bases[kb]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc, ok := data.docs[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns every document in kb ordered by id.
func (s *KnowledgeBaseStore) ListDocuments(_ context.Context, kb string) ([]domain.IndexedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.bases[kb]
	if !ok {
		return nil, domain.ErrNotFound
	}
	result := make([]domain.IndexedDocument, 0, len(data.docs))
	for _, doc := range data.docs {
		result = append(result, doc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Record.DocID < result[j].Record.DocID })
	return result, nil
}

// GetChunks returns a document's chunks ordered by sequence number.
func (s *KnowledgeBaseStore) GetChunks(_ context.Context, kb, docID string) ([]driven.StoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.bases[kb]
	if !ok {
		return nil, domain.ErrNotFound
	}
	chunks, ok := data.chunks[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	result := make([]driven.StoredChunk, len(chunks))
	copy(result, chunks)
	return result, nil
}

// Close is a no-op.
func (s *KnowledgeBaseStore) Close() error {
	return nil
}
