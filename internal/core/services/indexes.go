package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/logger"
)

// IndexSet owns the retrieval index of every knowledge base. Indexes are
// hydrated from the store on first use. Writes to one knowledge base are
// serialised and go to the optional external vector index, the store and
// the in-memory index, in that order. Readers never wait for writers: they
// take the snapshot published by the last completed write.
type IndexSet struct {
	store    driven.KnowledgeBaseStore
	vectors  driven.VectorIndex
	newIndex func() driven.RetrievalIndex

	mu      sync.Mutex
	indexes map[string]*kbIndex
}

type kbIndex struct {
	// mu serialises writers.
	mu    sync.Mutex
	index driven.RetrievalIndex

	loadMu sync.Mutex
	loaded atomic.Bool
}

// NewIndexSet creates an index set. vectors may be nil.
func NewIndexSet(
	store driven.KnowledgeBaseStore,
	vectors driven.VectorIndex,
	newIndex func() driven.RetrievalIndex,
) *IndexSet {
	return &IndexSet{
		store:    store,
		vectors:  vectors,
		newIndex: newIndex,
		indexes:  make(map[string]*kbIndex),
	}
}

// KnowledgeBase returns the stored knowledge base.
func (s *IndexSet) KnowledgeBase(ctx context.Context, kb string) (*domain.KnowledgeBase, error) {
	return s.store.GetKnowledgeBase(ctx, kb)
}

// Vectors returns the external vector index, or nil.
func (s *IndexSet) Vectors() driven.VectorIndex {
	return s.vectors
}

func (s *IndexSet) entry(kb string) *kbIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.indexes[kb]
	if !ok {
		e = &kbIndex{index: s.newIndex()}
		s.indexes[kb] = e
	}
	return e
}

// load hydrates e from the store once. A failed load is retried by the
// next caller.
func (s *IndexSet) load(ctx context.Context, kb string, e *kbIndex) error {
	if e.loaded.Load() {
		return nil
	}
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if e.loaded.Load() {
		return nil
	}

	if _, err := s.store.GetKnowledgeBase(ctx, kb); err != nil {
		return fmt.Errorf("knowledge base %q: %w", kb, err)
	}
	docs, err := s.store.ListDocuments(ctx, kb)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, doc := range docs {
		stored, err := s.store.GetChunks(ctx, kb, doc.Record.DocID)
		if err != nil {
			return fmt.Errorf("load chunks of %s: %w", doc.Record.DocID, err)
		}
		update := driven.DocumentUpdate{
			Record:     doc.Record,
			TextHash:   doc.TextHash,
			Chunks:     make([]domain.Chunk, len(stored)),
			Embeddings: make([][]float32, len(stored)),
		}
		for i, sc := range stored {
			update.Chunks[i] = sc.Chunk
			update.Embeddings[i] = sc.Embedding
		}
		if err := e.index.Apply(ctx, update); err != nil {
			return fmt.Errorf("hydrate %s: %w", doc.Record.DocID, err)
		}
	}
	logger.Debug("Hydrated index %q: %d documents", kb, len(docs))
	e.loaded.Store(true)
	return nil
}

// View returns the current snapshot of kb's index. It does not wait for
// in-flight writes.
func (s *IndexSet) View(ctx context.Context, kb string) (driven.IndexView, error) {
	e := s.entry(kb)
	if err := s.load(ctx, kb, e); err != nil {
		return nil, err
	}
	return e.index.View(), nil
}

// Commit replaces a document's chunks everywhere. The commit runs to
// completion even if ctx is cancelled once it has started.
func (s *IndexSet) Commit(ctx context.Context, kb string, update driven.DocumentUpdate) error {
	if err := validateUpdate(update); err != nil {
		return err
	}
	e := s.entry(kb)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.load(ctx, kb, e); err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	docID := update.Record.DocID

	var previous []driven.VectorEntry
	if s.vectors != nil {
		previous = documentVectors(e.index.View(), docID)
		entries := make([]driven.VectorEntry, 0, len(update.Chunks))
		for i, c := range update.Chunks {
			if i < len(update.Embeddings) {
				entries = append(entries, driven.VectorEntry{ChunkID: c.ChunkID, Embedding: update.Embeddings[i]})
			}
		}
		if err := s.vectors.ReplaceDocument(ctx, kb, docID, entries); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
		}
	}
	if err := s.store.SaveDocument(ctx, kb, update); err != nil {
		s.restoreVectors(ctx, kb, docID, previous)
		return fmt.Errorf("save document: %w", err)
	}
	if err := e.index.Apply(ctx, update); err != nil {
		return fmt.Errorf("apply to index: %w", err)
	}
	return nil
}

// validateUpdate rejects updates the in-memory index would refuse, before
// anything is written.
func validateUpdate(update driven.DocumentUpdate) error {
	if update.Record == nil || update.Record.DocID == "" {
		return fmt.Errorf("%w: update without citation record", domain.ErrInvalidInput)
	}
	if update.Embeddings != nil && len(update.Embeddings) != len(update.Chunks) {
		return fmt.Errorf("%w: %d embeddings for %d chunks",
			domain.ErrInvalidInput, len(update.Embeddings), len(update.Chunks))
	}
	for _, c := range update.Chunks {
		if c.DocID != update.Record.DocID {
			return fmt.Errorf("%w: chunk %s belongs to %s, not %s",
				domain.ErrInvalidInput, c.ChunkID, c.DocID, update.Record.DocID)
		}
	}
	return nil
}

// restoreVectors puts back the external vectors a failed commit replaced.
func (s *IndexSet) restoreVectors(ctx context.Context, kb, docID string, previous []driven.VectorEntry) {
	if s.vectors == nil {
		return
	}
	var err error
	if len(previous) == 0 {
		err = s.vectors.DeleteDocument(ctx, kb, docID)
	} else {
		err = s.vectors.ReplaceDocument(ctx, kb, docID, previous)
	}
	if err != nil {
		logger.Error("Restoring vectors of %s/%s: %v", kb, docID, err)
	}
}

// documentVectors returns the embedded chunks of docID in view.
func documentVectors(view driven.IndexView, docID string) []driven.VectorEntry {
	var entries []driven.VectorEntry
	view.Chunks(func(c *domain.IndexedChunk) bool {
		if c.Chunk.DocID == docID && c.Embedding != nil {
			entries = append(entries, driven.VectorEntry{ChunkID: c.Chunk.ChunkID, Embedding: c.Embedding})
		}
		return true
	})
	return entries
}

// Remove deletes a document everywhere.
func (s *IndexSet) Remove(ctx context.Context, kb, docID string) error {
	e := s.entry(kb)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.load(ctx, kb, e); err != nil {
		return err
	}
	var previous []driven.VectorEntry
	if s.vectors != nil {
		previous = documentVectors(e.index.View(), docID)
		if err := s.vectors.DeleteDocument(ctx, kb, docID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
		}
	}
	if err := s.store.DeleteDocument(ctx, kb, docID); err != nil {
		if len(previous) > 0 {
			s.restoreVectors(ctx, kb, docID, previous)
		}
		return err
	}
	return e.index.Remove(ctx, docID)
}

// Drop forgets kb's index and removes its external vectors.
func (s *IndexSet) Drop(ctx context.Context, kb string) error {
	s.mu.Lock()
	delete(s.indexes, kb)
	s.mu.Unlock()

	if s.vectors != nil {
		if err := s.vectors.DropKnowledgeBase(ctx, kb); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
		}
	}
	return nil
}
