package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/citekit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

func newTestKnowledgeBaseService(embedder driven.EmbeddingService) (*KnowledgeBaseService, *memory.KnowledgeBaseStore, *stubVectorIndex) {
	store := memory.NewKnowledgeBaseStore()
	vectors := &stubVectorIndex{}
	indexes := NewIndexSet(store, vectors, func() driven.RetrievalIndex { return memory.NewRetrievalIndex() })
	return NewKnowledgeBaseService(store, indexes, embedder), store, vectors
}

// TestKnowledgeBaseService_Create tests creation and pinning
func TestKnowledgeBaseService_Create(t *testing.T) {
	svc, _, _ := newTestKnowledgeBaseService(newStubEmbedder(4))
	ctx := context.Background()

	kb, err := svc.Create(ctx, "docs", "project docs")
	require.NoError(t, err)
	assert.Equal(t, 4, kb.Dimensions)
	assert.Equal(t, "stub", kb.EmbeddingModel)
	assert.False(t, kb.CreatedAt.IsZero())

	_, err = svc.Create(ctx, "docs", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = svc.Create(ctx, "bad name!", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestKnowledgeBaseService_CreateWithoutEmbedder tests unpinned creation
func TestKnowledgeBaseService_CreateWithoutEmbedder(t *testing.T) {
	svc, _, _ := newTestKnowledgeBaseService(nil)
	kb, err := svc.Create(context.Background(), "docs", "")
	require.NoError(t, err)
	assert.Zero(t, kb.Dimensions)
}

// TestKnowledgeBaseService_ListStatusDelete tests the remaining lifecycle
func TestKnowledgeBaseService_ListStatusDelete(t *testing.T) {
	svc, store, _ := newTestKnowledgeBaseService(newStubEmbedder(2))
	ctx := context.Background()

	_, err := svc.Create(ctx, "b", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "a", "")
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)

	record, chunks, vecs, err := fixtureUpdate("doc", fixtureChunk{"one", []float32{1, 0}}, fixtureChunk{"two", []float32{0, 1}})
	require.NoError(t, err)
	require.NoError(t, store.SaveDocument(ctx, "a", driven.DocumentUpdate{
		Record: record, TextHash: "h", Chunks: chunks, Embeddings: vecs,
	}))

	status, err := svc.Status(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, status.DocumentCount)
	assert.Equal(t, 2, status.ChunkCount)

	require.NoError(t, svc.Delete(ctx, "a"))
	_, err = svc.Status(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "a"), domain.ErrNotFound)
}

// TestIndexSet_HydratesFromStore tests lazy index hydration
func TestIndexSet_HydratesFromStore(t *testing.T) {
	indexes, store := newTestIndexSet(t, nil)
	ctx := context.Background()

	record, chunks, vecs, err := fixtureUpdate("doc", fixtureChunk{"persisted text", []float32{1, 0}})
	require.NoError(t, err)
	require.NoError(t, store.SaveDocument(ctx, "kb", driven.DocumentUpdate{
		Record: record, TextHash: "h", Chunks: chunks, Embeddings: vecs,
	}))

	view, err := indexes.View(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 1, view.ChunkCount())
	c, ok := view.Chunk("doc_chunk_0")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, c.Embedding)

	_, err = indexes.View(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestIndexSet_CommitCancelled tests that a cancelled commit writes nothing
func TestIndexSet_CommitCancelled(t *testing.T) {
	indexes, store := newTestIndexSet(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, chunks, vecs, err := fixtureUpdate("doc", fixtureChunk{"text", []float32{1, 0}})
	require.NoError(t, err)
	err = indexes.Commit(ctx, "kb", driven.DocumentUpdate{Record: record, Chunks: chunks, Embeddings: vecs})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.GetDocument(context.Background(), "kb", "doc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestCitationService tests record, chunk and citation lookups
func TestCitationService(t *testing.T) {
	store := memory.NewKnowledgeBaseStore()
	ctx := context.Background()
	require.NoError(t, store.CreateKnowledgeBase(ctx, &domain.KnowledgeBase{Name: "kb"}))

	record, chunks, vecs, err := fixtureUpdate("my_doc", fixtureChunk{"first", nil}, fixtureChunk{"second", nil})
	require.NoError(t, err)
	require.NoError(t, store.SaveDocument(ctx, "kb", driven.DocumentUpdate{
		Record: record, TextHash: "h", Chunks: chunks, Embeddings: vecs,
	}))

	svc := NewCitationService(store)

	got, err := svc.GetRecord(ctx, "kb", "my_doc")
	require.NoError(t, err)
	assert.Equal(t, record.Anchors, got.Anchors)

	gotChunks, err := svc.GetChunks(ctx, "kb", "my_doc")
	require.NoError(t, err)
	require.Len(t, gotChunks, 2)
	assert.Equal(t, "second", gotChunks[1].Text)

	text, err := svc.Cite(ctx, "kb", "my_doc_chunk_1")
	require.NoError(t, err)
	assert.Equal(t, "Guide, ## Retrieval, by Ann, Version 1.0", text)

	_, err = svc.Cite(ctx, "kb", "my_doc_chunk_9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Cite(ctx, "kb", "nochunk")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.GetRecord(ctx, "kb", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
