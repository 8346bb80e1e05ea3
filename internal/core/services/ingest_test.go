package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/citekit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/lexical"
	"github.com/custodia-labs/citekit/internal/postprocessors"
)

// blockingEmbedder blocks EmbedBatch until released or cancelled.
type blockingEmbedder struct {
	*stubEmbedder
	entered chan string
	release chan struct{}
}

func newBlockingEmbedder() *blockingEmbedder {
	return &blockingEmbedder{
		stubEmbedder: newStubEmbedder(2),
		entered:      make(chan string, 64),
		release:      make(chan struct{}),
	}
}

func (e *blockingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.entered <- texts[0]
	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.stubEmbedder.EmbedBatch(ctx, texts)
}

type ingestFixture struct {
	ingest  *IngestService
	search  *SearchService
	store   *memory.KnowledgeBaseStore
	indexes *IndexSet
}

func newIngestFixture(t *testing.T, embedder driven.EmbeddingService, processing domain.ProcessingSettings) *ingestFixture {
	t.Helper()
	indexes, store := newTestIndexSet(t, nil)

	pipeline, err := postprocessors.NewDefaultPipeline(domain.ChunkingSettings{
		MaxTokens: 20, Overlap: 2, MinChunkSize: 0, RespectBoundaries: true,
	})
	require.NoError(t, err)

	ingest, err := NewIngestService(store, pipeline, embedder, indexes, processing)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ingest.Close() })

	settings := domain.DefaultSearchSettings()
	settings.MinScore = 0
	search, err := NewSearchService(indexes, embedder, lexical.NewBM25(), settings)
	require.NoError(t, err)

	// The fixture knowledge base starts unpinned.
	kb, err := store.GetKnowledgeBase(context.Background(), "kb")
	require.NoError(t, err)
	kb.Dimensions = 0
	require.NoError(t, store.UpdateKnowledgeBase(context.Background(), kb))

	return &ingestFixture{ingest: ingest, search: search, store: store, indexes: indexes}
}

func defaultProcessing() domain.ProcessingSettings {
	return domain.ProcessingSettings{
		MaxWorkers:     2,
		QueueCapacity:  4,
		QueuePolicy:    domain.QueuePolicyBlock,
		EmbedBatchSize: 3,
	}
}

// markdownDoc builds a document of sections, each a heading and three lines.
func markdownDoc(id string, sections int, topic string) domain.SourceDocument {
	var lines []string
	var elements []domain.StructuralElement
	for s := 0; s < sections; s++ {
		start := len(lines) + 1
		lines = append(lines,
			fmt.Sprintf("## Section %d", s),
			fmt.Sprintf("%s notes for section %d cover indexing", topic, s),
			"chunks keep their citation anchors intact",
			"every line adds a few more words here",
		)
		elements = append(elements, domain.StructuralElement{
			Type:      domain.ElementHeader,
			Name:      fmt.Sprintf("Section %d", s),
			StartLine: domain.IntPtr(start),
			EndLine:   domain.IntPtr(len(lines)),
			Level:     2,
		})
	}
	return domain.SourceDocument{
		DocID: id,
		Path:  id + ".md",
		Text:  strings.Join(lines, "\n"),
		Structure: &domain.StructureModel{
			DocID:    id,
			Format:   domain.FormatMarkdown,
			Elements: elements,
		},
		Metadata: domain.DocumentMetadata{Title: id, Author: "Ann"},
	}
}

func batchStatus(b *batch, docID string) domain.DocumentStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.manifest.Documents[docID].Status
}

// TestNewIngestService_InvalidSettings tests settings validation
func TestNewIngestService_InvalidSettings(t *testing.T) {
	indexes, store := newTestIndexSet(t, nil)
	settings := defaultProcessing()
	settings.QueuePolicy = "drop"

	_, err := NewIngestService(store, postprocessors.NewPipeline(), nil, indexes, settings)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

// TestIngestService_Ingest tests a successful batch
func TestIngestService_Ingest(t *testing.T) {
	embedder := newStubEmbedder(2)
	f := newIngestFixture(t, embedder, defaultProcessing())
	ctx := context.Background()

	docs := []domain.SourceDocument{
		markdownDoc("alpha", 3, "vector"),
		markdownDoc("beta", 2, "keyword"),
		markdownDoc("gamma", 1, "ranking"),
	}
	manifest, err := f.ingest.Ingest(ctx, "kb", docs)
	require.NoError(t, err)

	assert.NotEmpty(t, manifest.BatchID)
	assert.Equal(t, "kb", manifest.KnowledgeBase)
	assert.False(t, manifest.FinishedAt.IsZero())
	for _, doc := range docs {
		outcome := manifest.Documents[doc.DocID]
		assert.Equal(t, domain.StatusIndexed, outcome.Status, outcome.Error)
		assert.Positive(t, outcome.ChunkCount)

		stored, err := f.store.GetDocument(ctx, "kb", doc.DocID)
		require.NoError(t, err)
		assert.Equal(t, outcome.ChunkCount, stored.ChunkCount)
		assert.Equal(t, doc.TextHash(), stored.TextHash)
	}

	kb, err := f.store.GetKnowledgeBase(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, 2, kb.Dimensions)
	assert.Equal(t, "stub", kb.EmbeddingModel)

	resp, err := f.search.Search(ctx, "kb", "keyword notes", domain.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "beta", resp.Results[0].DocID)
	assert.Contains(t, resp.Results[0].CitationText, "## Section")
}

// TestIngestService_Unchanged tests change detection
func TestIngestService_Unchanged(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), defaultProcessing())
	ctx := context.Background()
	docs := []domain.SourceDocument{markdownDoc("alpha", 2, "vector"), markdownDoc("beta", 2, "keyword")}

	_, err := f.ingest.Ingest(ctx, "kb", docs)
	require.NoError(t, err)

	docs[1] = markdownDoc("beta", 3, "keyword")
	manifest, err := f.ingest.Ingest(ctx, "kb", docs)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnchanged, manifest.Documents["alpha"].Status)
	assert.Positive(t, manifest.Documents["alpha"].ChunkCount)
	assert.Equal(t, domain.StatusIndexed, manifest.Documents["beta"].Status)
}

// TestIngestService_UnchangedWithDemotedElement tests that a document whose
// structure has an element without a citation anchor is still detected as
// unchanged on re-ingest.
func TestIngestService_UnchangedWithDemotedElement(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), defaultProcessing())
	ctx := context.Background()

	doc := markdownDoc("alpha", 2, "vector")
	doc.Structure.Elements[1].StartLine = domain.IntPtr(8)
	doc.Structure.Elements[1].EndLine = domain.IntPtr(5)

	first, err := f.ingest.Ingest(ctx, "kb", []domain.SourceDocument{doc})
	require.NoError(t, err)
	require.Equal(t, domain.StatusIndexed, first.Documents["alpha"].Status)

	second, err := f.ingest.Ingest(ctx, "kb", []domain.SourceDocument{doc})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnchanged, second.Documents["alpha"].Status)
	assert.Equal(t, first.Documents["alpha"].ChunkCount, second.Documents["alpha"].ChunkCount)
}

// TestIngestService_FailedDocumentIsIsolated tests per-document failure
func TestIngestService_FailedDocumentIsIsolated(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), defaultProcessing())
	ctx := context.Background()

	broken := markdownDoc("broken", 1, "bad")
	broken.Structure.Elements[0].EndLine = domain.IntPtr(99)

	manifest, err := f.ingest.Ingest(ctx, "kb", []domain.SourceDocument{
		markdownDoc("good", 2, "fine"), broken,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusIndexed, manifest.Documents["good"].Status)
	assert.Equal(t, domain.StatusFailed, manifest.Documents["broken"].Status)
	assert.Contains(t, manifest.Documents["broken"].Error, "broken")
	assert.True(t, manifest.Failed())

	_, err = f.store.GetDocument(ctx, "kb", "broken")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestIngestService_EmbeddingFailure tests that embedding errors fail the document
func TestIngestService_EmbeddingFailure(t *testing.T) {
	embedder := newStubEmbedder(2)
	embedder.err = errors.New("model not loaded")
	f := newIngestFixture(t, embedder, defaultProcessing())

	manifest, err := f.ingest.Ingest(context.Background(), "kb",
		[]domain.SourceDocument{markdownDoc("alpha", 1, "x")})
	require.NoError(t, err)

	outcome := manifest.Documents["alpha"]
	assert.Equal(t, domain.StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Error, StageEmbed)
	assert.Contains(t, outcome.Error, "model not loaded")
}

// TestIngestService_DimensionMismatch tests the pinned dimension check
func TestIngestService_DimensionMismatch(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), defaultProcessing())
	ctx := context.Background()

	kb, _ := f.store.GetKnowledgeBase(ctx, "kb")
	kb.Dimensions = 3
	require.NoError(t, f.store.UpdateKnowledgeBase(ctx, kb))

	manifest, err := f.ingest.Ingest(ctx, "kb", []domain.SourceDocument{markdownDoc("alpha", 1, "x")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, manifest.Documents["alpha"].Status)
	assert.Contains(t, manifest.Documents["alpha"].Error, domain.ErrDimensionMismatch.Error())
}

// TestIngestService_NoEmbedder tests keyword-only indexing
func TestIngestService_NoEmbedder(t *testing.T) {
	f := newIngestFixture(t, nil, defaultProcessing())
	ctx := context.Background()

	manifest, err := f.ingest.Ingest(ctx, "kb", []domain.SourceDocument{markdownDoc("alpha", 2, "lexical")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, manifest.Documents["alpha"].Status)

	resp, err := f.search.Search(ctx, "kb", "lexical", domain.SearchOptions{})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Results)
}

// TestIngestService_CancelDocument tests that a cancelled document never commits
func TestIngestService_CancelDocument(t *testing.T) {
	embedder := newBlockingEmbedder()
	f := newIngestFixture(t, embedder, defaultProcessing())
	ctx := context.Background()

	b, err := f.ingest.Start(ctx, "kb", []domain.SourceDocument{markdownDoc("slow", 1, "x")})
	require.NoError(t, err)

	<-embedder.entered
	assert.True(t, b.Cancel("slow"))
	manifest := b.Wait()

	assert.Equal(t, domain.StatusCancelled, manifest.Documents["slow"].Status)
	assert.False(t, b.Cancel("slow"))
	assert.False(t, b.Cancel("unknown"))

	_, err = f.store.GetDocument(ctx, "kb", "slow")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	view, err := f.indexes.View(ctx, "kb")
	require.NoError(t, err)
	assert.Zero(t, view.ChunkCount())
}

// TestIngestService_CancelBatchContext tests cancelling through the context
func TestIngestService_CancelBatchContext(t *testing.T) {
	embedder := newBlockingEmbedder()
	f := newIngestFixture(t, embedder, defaultProcessing())
	ctx, cancel := context.WithCancel(context.Background())

	docs := []domain.SourceDocument{markdownDoc("a", 1, "x"), markdownDoc("b", 1, "y"), markdownDoc("c", 1, "z")}
	b, err := f.ingest.Start(ctx, "kb", docs)
	require.NoError(t, err)

	<-embedder.entered
	cancel()
	manifest := b.Wait()

	assert.Equal(t, 3, manifest.Count(domain.StatusCancelled))
}

// TestIngestService_CancelAll tests cancelling every unfinished document
func TestIngestService_CancelAll(t *testing.T) {
	embedder := newBlockingEmbedder()
	f := newIngestFixture(t, embedder, defaultProcessing())

	b, err := f.ingest.Start(context.Background(), "kb",
		[]domain.SourceDocument{markdownDoc("a", 1, "x"), markdownDoc("b", 1, "y")})
	require.NoError(t, err)

	<-embedder.entered
	b.CancelAll()
	assert.Equal(t, 2, b.Wait().Count(domain.StatusCancelled))
}

// TestIngestService_RejectPolicy tests backpressure with the reject policy
func TestIngestService_RejectPolicy(t *testing.T) {
	embedder := newBlockingEmbedder()
	f := newIngestFixture(t, embedder, domain.ProcessingSettings{
		MaxWorkers:     1,
		QueueCapacity:  1,
		QueuePolicy:    domain.QueuePolicyReject,
		EmbedBatchSize: 10,
	})

	docs := make([]domain.SourceDocument, 6)
	for i := range docs {
		docs[i] = markdownDoc(fmt.Sprintf("doc-%d", i), 1, "x")
	}
	started, err := f.ingest.Start(context.Background(), "kb", docs)
	require.NoError(t, err)
	b := started.(*batch)

	<-embedder.entered
	require.Eventually(t, func() bool {
		rejected := 0
		for _, doc := range docs {
			if batchStatus(b, doc.DocID) == domain.StatusRejected {
				rejected++
			}
		}
		return rejected >= 3
	}, 5*time.Second, 10*time.Millisecond)

	close(embedder.release)
	manifest := b.Wait()

	assert.GreaterOrEqual(t, manifest.Count(domain.StatusRejected), 3)
	assert.Equal(t, 6, manifest.Count(domain.StatusRejected)+manifest.Count(domain.StatusIndexed))
	for id, o := range manifest.Documents {
		if o.Status == domain.StatusRejected {
			assert.Equal(t, domain.ErrQueueFull.Error(), o.Error, id)
		}
	}
}

// TestIngestService_BlockPolicy tests that the block policy eventually indexes everything
func TestIngestService_BlockPolicy(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), domain.ProcessingSettings{
		MaxWorkers:     2,
		QueueCapacity:  1,
		QueuePolicy:    domain.QueuePolicyBlock,
		EmbedBatchSize: 2,
	})

	docs := make([]domain.SourceDocument, 12)
	for i := range docs {
		docs[i] = markdownDoc(fmt.Sprintf("doc-%02d", i), 2, "topic")
	}
	manifest, err := f.ingest.Ingest(context.Background(), "kb", docs)
	require.NoError(t, err)
	assert.Equal(t, 12, manifest.Count(domain.StatusIndexed))

	view, err := f.indexes.View(context.Background(), "kb")
	require.NoError(t, err)
	assert.Equal(t, 12, view.DocumentCount())
}

// TestIngestService_ConcurrentBatches tests independent batches sharing the pool
func TestIngestService_ConcurrentBatches(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), defaultProcessing())

	var wg sync.WaitGroup
	for n := 0; n < 3; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs := []domain.SourceDocument{
				markdownDoc(fmt.Sprintf("batch%d-a", n), 1, "x"),
				markdownDoc(fmt.Sprintf("batch%d-b", n), 2, "y"),
			}
			manifest, err := f.ingest.Ingest(context.Background(), "kb", docs)
			if assert.NoError(t, err) {
				assert.Equal(t, 2, manifest.Count(domain.StatusIndexed))
			}
		}()
	}
	wg.Wait()

	view, err := f.indexes.View(context.Background(), "kb")
	require.NoError(t, err)
	assert.Equal(t, 6, view.DocumentCount())
}

// TestIngestService_StartErrors tests batch validation
func TestIngestService_StartErrors(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), defaultProcessing())
	ctx := context.Background()

	_, err := f.ingest.Start(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ingest.Start(ctx, "kb", []domain.SourceDocument{markdownDoc("a", 1, "x"), markdownDoc("a", 1, "y")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.ingest.Start(ctx, "kb", []domain.SourceDocument{{Text: "no id"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, f.ingest.Close())
	require.NoError(t, f.ingest.Close())
	_, err = f.ingest.Start(ctx, "kb", []domain.SourceDocument{markdownDoc("a", 1, "x")})
	assert.ErrorIs(t, err, ErrIngestClosed)
}

// TestIngestService_Preview tests chunking without commit
func TestIngestService_Preview(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), defaultProcessing())
	doc := markdownDoc("preview", 3, "dry")

	record, chunks, err := f.ingest.Preview(context.Background(), &doc)
	require.NoError(t, err)
	assert.Len(t, record.Anchors, 3)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "preview_chunk_0", chunks[0].ChunkID)

	_, err = f.store.GetDocument(context.Background(), "kb", "preview")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestIngestService_Remove tests document removal
func TestIngestService_Remove(t *testing.T) {
	f := newIngestFixture(t, newStubEmbedder(2), defaultProcessing())
	ctx := context.Background()

	_, err := f.ingest.Ingest(ctx, "kb", []domain.SourceDocument{markdownDoc("gone", 1, "x")})
	require.NoError(t, err)
	require.NoError(t, f.ingest.Remove(ctx, "kb", "gone"))

	_, err = f.store.GetDocument(ctx, "kb", "gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.ingest.Remove(ctx, "kb", "gone"), domain.ErrNotFound)
}
