package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/core/ports/driving"
	"github.com/custodia-labs/citekit/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// ErrIngestClosed is returned by Start after Close.
var ErrIngestClosed = errors.New("ingest service closed")

// ReleaseTimeout bounds how long Close waits for running workers.
const ReleaseTimeout = 30 * time.Second

// Ingest stages reported in DocumentProcessingError.
const (
	StageLookup = "lookup"
	StageIndex  = "citation_index"
	StageChunk  = "chunk"
	StageEmbed  = "embed"
	StageCommit = "commit"
)

// IngestService runs documents through citation indexing, chunking,
// embedding and commit on a bounded worker pool. A bounded queue sits in
// front of the pool; when it is full, enqueueing either waits or rejects
// depending on the queue policy.
type IngestService struct {
	store    driven.KnowledgeBaseStore
	indexer  *CitationIndexer
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	indexes  *IndexSet
	settings domain.ProcessingSettings

	pool  *ants.Pool
	queue chan *ingestTask
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
	pinMu  sync.Mutex
}

type ingestTask struct {
	ctx   context.Context
	kb    string
	doc   domain.SourceDocument
	batch *batch
}

// NewIngestService creates an ingest service and starts its dispatcher.
// embedder may be nil, in which case chunks are indexed for keyword search only.
func NewIngestService(
	store driven.KnowledgeBaseStore,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	indexes *IndexSet,
	settings domain.ProcessingSettings,
) (*IngestService, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(settings.MaxWorkers,
		ants.WithPanicHandler(func(p any) {
			logger.Error("ingest worker panic: %v", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	s := &IngestService{
		store:    store,
		indexer:  NewCitationIndexer(),
		pipeline: pipeline,
		embedder: embedder,
		indexes:  indexes,
		settings: settings,
		pool:     pool,
		queue:    make(chan *ingestTask, settings.QueueCapacity),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.dispatch()
	return s, nil
}

// dispatch feeds queued tasks to the pool. Submit blocks while every
// worker is busy, so the queue absorbs bursts up to its capacity.
func (s *IngestService) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case t := <-s.queue:
			if err := s.pool.Submit(func() { s.run(t) }); err != nil {
				t.batch.finish(t.doc.DocID, domain.DocumentOutcome{
					Status: domain.StatusFailed,
					Error:  fmt.Sprintf("submit: %v", err),
				})
			}
		}
	}
}

// drain cancels tasks still queued at shutdown.
func (s *IngestService) drain() {
	for {
		select {
		case t := <-s.queue:
			t.batch.finish(t.doc.DocID, domain.DocumentOutcome{
				Status: domain.StatusCancelled,
				Error:  ErrIngestClosed.Error(),
			})
		default:
			return
		}
	}
}

// Start begins processing docs into kb and returns immediately.
func (s *IngestService) Start(ctx context.Context, kb string, docs []domain.SourceDocument) (driving.Batch, error) {
	if _, err := s.store.GetKnowledgeBase(ctx, kb); err != nil {
		return nil, fmt.Errorf("knowledge base %q: %w", kb, err)
	}

	ids := make([]string, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		if doc.DocID == "" {
			return nil, fmt.Errorf("%w: document %d has no doc_id", domain.ErrInvalidInput, i)
		}
		if _, dup := seen[doc.DocID]; dup {
			return nil, fmt.Errorf("%w: duplicate doc_id %q", domain.ErrInvalidInput, doc.DocID)
		}
		seen[doc.DocID] = struct{}{}
		ids[i] = doc.DocID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrIngestClosed
	}

	b := newBatch(ctx, uuid.NewString(), kb, ids)
	logger.Info("Batch %s: %d documents into %q", b.id, len(docs), kb)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.enqueue(b, kb, docs)
	}()
	return b, nil
}

func (s *IngestService) enqueue(b *batch, kb string, docs []domain.SourceDocument) {
	for _, doc := range docs {
		docCtx, ok := b.context(doc.DocID)
		if !ok {
			continue
		}
		t := &ingestTask{ctx: docCtx, kb: kb, doc: doc, batch: b}

		select {
		case <-s.done:
			b.finish(doc.DocID, domain.DocumentOutcome{Status: domain.StatusCancelled, Error: ErrIngestClosed.Error()})
			continue
		default:
		}

		if s.settings.QueuePolicy == domain.QueuePolicyReject {
			select {
			case s.queue <- t:
			default:
				logger.Warn("Queue full, rejecting %s", doc.DocID)
				b.finish(doc.DocID, domain.DocumentOutcome{
					Status: domain.StatusRejected,
					Error:  domain.ErrQueueFull.Error(),
				})
			}
			continue
		}

		select {
		case s.queue <- t:
		case <-docCtx.Done():
			b.finish(doc.DocID, domain.DocumentOutcome{Status: domain.StatusCancelled})
		case <-s.done:
			b.finish(doc.DocID, domain.DocumentOutcome{Status: domain.StatusCancelled, Error: ErrIngestClosed.Error()})
		}
	}
}

// Ingest processes docs and waits for the manifest.
func (s *IngestService) Ingest(ctx context.Context, kb string, docs []domain.SourceDocument) (*domain.BatchManifest, error) {
	b, err := s.Start(ctx, kb, docs)
	if err != nil {
		return nil, err
	}
	return b.Wait(), nil
}

// run processes one document and records its outcome.
func (s *IngestService) run(t *ingestTask) {
	id := t.doc.DocID
	defer func() {
		if r := recover(); r != nil {
			t.batch.finish(id, domain.DocumentOutcome{Status: domain.StatusFailed, Error: fmt.Sprintf("panic: %v", r)})
		}
	}()

	outcome := s.process(t.ctx, t.kb, &t.doc)
	switch outcome.Status {
	case domain.StatusFailed:
		logger.Warn("Document %s failed: %s", id, outcome.Error)
	case domain.StatusCancelled:
		logger.Info("Document %s cancelled", id)
	default:
		logger.Debug("Document %s %s (%d chunks)", id, outcome.Status, outcome.ChunkCount)
	}
	t.batch.finish(id, outcome)
}

// process runs the per-document pipeline. Nothing is written before the
// final commit, so every non-indexed outcome leaves the store untouched.
func (s *IngestService) process(ctx context.Context, kb string, doc *domain.SourceDocument) domain.DocumentOutcome {
	fail := func(stage string, err error) domain.DocumentOutcome {
		if ctx.Err() != nil {
			return domain.DocumentOutcome{Status: domain.StatusCancelled}
		}
		var perr *domain.DocumentProcessingError
		if !errors.As(err, &perr) {
			perr = domain.NewDocumentProcessingError(doc.DocID, stage, err)
		}
		return domain.DocumentOutcome{Status: domain.StatusFailed, Error: perr.Error()}
	}
	if ctx.Err() != nil {
		return domain.DocumentOutcome{Status: domain.StatusCancelled}
	}

	stored, err := s.store.GetDocument(ctx, kb, doc.DocID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fail(StageLookup, err)
	}

	record, err := s.indexer.Index(doc.Structure, doc.DocID, doc.Metadata)
	if err != nil {
		return fail(StageIndex, err)
	}
	if stored.IsUnchanged(doc, record) {
		return domain.DocumentOutcome{Status: domain.StatusUnchanged, ChunkCount: stored.ChunkCount}
	}

	chunks, err := s.pipeline.Process(ctx, doc, record)
	if err != nil {
		return fail(StageChunk, err)
	}

	embeddings, err := s.embed(ctx, kb, chunks)
	if err != nil {
		return fail(StageEmbed, err)
	}

	if ctx.Err() != nil {
		return domain.DocumentOutcome{Status: domain.StatusCancelled}
	}
	update := driven.DocumentUpdate{
		Record:     record,
		TextHash:   doc.TextHash(),
		Chunks:     chunks,
		Embeddings: embeddings,
	}
	if err := s.indexes.Commit(ctx, kb, update); err != nil {
		return fail(StageCommit, err)
	}
	return domain.DocumentOutcome{Status: domain.StatusIndexed, ChunkCount: len(chunks)}
}

// embed vectors chunks in batches and checks them against the knowledge
// base's pinned dimension, pinning it on first use.
func (s *IngestService) embed(ctx context.Context, kb string, chunks []domain.Chunk) ([][]float32, error) {
	if s.embedder == nil || len(chunks) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(chunks))
	size := s.settings.EmbedBatchSize
	for start := 0; start < len(chunks); start += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+size, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
		}
		out = append(out, vecs...)
	}

	dims := len(out[0])
	for i, v := range out {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, chunk 0 has %d",
				domain.ErrDimensionMismatch, i, len(v), dims)
		}
	}
	if err := s.pinDimensions(ctx, kb, dims); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IngestService) pinDimensions(ctx context.Context, kb string, dims int) error {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()

	base, err := s.store.GetKnowledgeBase(ctx, kb)
	if err != nil {
		return err
	}
	if base.Dimensions == dims {
		return nil
	}
	if base.Dimensions != 0 {
		return fmt.Errorf("%w: knowledge base %q is pinned to %d dimensions, got %d",
			domain.ErrDimensionMismatch, kb, base.Dimensions, dims)
	}
	base.Dimensions = dims
	base.EmbeddingModel = s.embedder.ModelName()
	base.UpdatedAt = time.Now()
	logger.Info("Pinned knowledge base %q to %d dimensions (%s)", kb, dims, base.EmbeddingModel)
	return s.store.UpdateKnowledgeBase(ctx, base)
}

// Preview indexes and chunks one document without embedding or committing it.
func (s *IngestService) Preview(ctx context.Context, doc *domain.SourceDocument) (*domain.CitationRecord, []domain.Chunk, error) {
	record, err := s.indexer.Index(doc.Structure, doc.DocID, doc.Metadata)
	if err != nil {
		return nil, nil, domain.NewDocumentProcessingError(doc.DocID, StageIndex, err)
	}
	chunks, err := s.pipeline.Process(ctx, doc, record)
	if err != nil {
		return nil, nil, err
	}
	return record, chunks, nil
}

// Remove deletes a document and its chunks from kb.
func (s *IngestService) Remove(ctx context.Context, kb, docID string) error {
	return s.indexes.Remove(ctx, kb, docID)
}

// Close stops accepting documents, cancels queued ones and waits for
// running workers to finish.
func (s *IngestService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	s.drain()
	return s.pool.ReleaseTimeout(ReleaseTimeout)
}

// --- batch ---

// Ensure batch implements the interface.
var _ driving.Batch = (*batch)(nil)

type batch struct {
	id     string
	cancel context.CancelFunc

	mu       sync.Mutex
	manifest *domain.BatchManifest
	contexts map[string]context.Context
	cancels  map[string]context.CancelFunc
	pending  sync.WaitGroup
}

func newBatch(parent context.Context, id, kb string, docIDs []string) *batch {
	ctx, cancel := context.WithCancel(parent)
	b := &batch{
		id:       id,
		cancel:   cancel,
		manifest: domain.NewBatchManifest(id, kb, docIDs),
		contexts: make(map[string]context.Context, len(docIDs)),
		cancels:  make(map[string]context.CancelFunc, len(docIDs)),
	}
	for _, docID := range docIDs {
		b.contexts[docID], b.cancels[docID] = context.WithCancel(ctx)
	}
	b.pending.Add(len(docIDs))
	return b
}

// ID returns the batch identifier.
func (b *batch) ID() string { return b.id }

func (b *batch) context(docID string) (context.Context, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ctx, ok := b.contexts[docID]
	return ctx, ok && !b.manifest.Documents[docID].Status.IsTerminal()
}

// Cancel stops one unfinished document.
func (b *batch) Cancel(docID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	cancel, ok := b.cancels[docID]
	if !ok || b.manifest.Documents[docID].Status.IsTerminal() {
		return false
	}
	cancel()
	return true
}

// CancelAll stops every unfinished document.
func (b *batch) CancelAll() {
	b.cancel()
}

// finish records the final outcome of docID once.
func (b *batch) finish(docID string, outcome domain.DocumentOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.manifest.Documents[docID].Status.IsTerminal() {
		return
	}
	b.manifest.Documents[docID] = outcome
	if cancel, ok := b.cancels[docID]; ok {
		cancel()
	}
	b.pending.Done()
}

// Wait blocks until every document is final and returns a copy of the manifest.
func (b *batch) Wait() *domain.BatchManifest {
	b.pending.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.manifest.FinishedAt.IsZero() {
		b.manifest.FinishedAt = time.Now()
		b.cancel()
	}
	out := *b.manifest
	out.Documents = make(map[string]domain.DocumentOutcome, len(b.manifest.Documents))
	for id, o := range b.manifest.Documents {
		out.Documents[id] = o
	}
	return &out
}
