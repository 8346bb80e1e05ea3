package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/core/ports/driving"
	"github.com/custodia-labs/citekit/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// CandidateMultiplier sets how many candidates each stage considers per
// requested result.
const CandidateMultiplier = 4

// candidate holds intermediate scores before hydration.
type candidate struct {
	chunk   *domain.IndexedChunk
	vector  float64
	keyword float64
	score   float64
}

// SearchService is the hybrid retriever: vector candidates re-scored with a
// keyword signal and fused by configured weights.
type SearchService struct {
	indexes  *IndexSet
	embedder driven.EmbeddingService
	scorer   driven.KeywordScorer
	settings atomic.Pointer[domain.SearchSettings]
}

// NewSearchService creates a new search service. embedder may be nil, in
// which case every search is keyword-only and marked degraded.
func NewSearchService(
	indexes *IndexSet,
	embedder driven.EmbeddingService,
	scorer driven.KeywordScorer,
	settings domain.SearchSettings,
) (*SearchService, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s := &SearchService{
		indexes:  indexes,
		embedder: embedder,
		scorer:   scorer,
	}
	s.settings.Store(&settings)
	return s, nil
}

// Settings returns the current search settings.
func (s *SearchService) Settings() domain.SearchSettings {
	return *s.settings.Load()
}

// UpdateSettings swaps in new settings if they are valid.
func (s *SearchService) UpdateSettings(settings domain.SearchSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.settings.Store(&settings)
	return nil
}

// IndexDocument commits a document's chunks and embeddings to kb.
func (s *SearchService) IndexDocument(
	ctx context.Context, kb string, record *domain.CitationRecord, textHash string,
	chunks []domain.Chunk, embeddings [][]float32,
) error {
	return s.indexes.Commit(ctx, kb, driven.DocumentUpdate{
		Record:     record,
		TextHash:   textHash,
		Chunks:     chunks,
		Embeddings: embeddings,
	})
}

// Remove deletes a document from kb.
func (s *SearchService) Remove(ctx context.Context, kb, docID string) error {
	return s.indexes.Remove(ctx, kb, docID)
}

// Search ranks the chunks of kb against query.
func (s *SearchService) Search(
	ctx context.Context, kb, query string, opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q, knowledge base: %q", query, kb)

	settings, err := s.effective(opts)
	if err != nil {
		return nil, err
	}

	resp := &domain.SearchResponse{Query: query, KnowledgeBase: kb, Results: []domain.SearchResult{}}

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return resp, nil
	}

	view, err := s.indexes.View(ctx, kb)
	if err != nil {
		return nil, err
	}
	if view.ChunkCount() == 0 {
		logger.Debug("Knowledge base %q is empty", kb)
		return resp, nil
	}

	limit := settings.TopK * CandidateMultiplier
	terms := s.scorer.Terms(query)
	stats := view.Stats()
	vw, kw := settings.VectorWeight, settings.KeywordWeight

	candidates, degradation := s.vectorCandidates(ctx, kb, query, view, limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if degradation != nil {
		logger.Warn("Search degraded: %s", degradation)
		resp.Degrade(*degradation)
		vw, kw = 0, 1
		candidates = s.keywordCandidates(terms, view, stats, limit)
	} else {
		for _, c := range candidates {
			c.keyword = s.scorer.Score(terms, c.chunk, stats)
		}
	}
	logger.Debug("Candidates: %d (limit %d)", len(candidates), limit)

	kept := candidates[:0]
	for _, c := range candidates {
		c.score = vw*c.vector + kw*c.keyword
		if c.score < settings.MinScore {
			continue
		}
		kept = append(kept, c)
	}
	sortCandidates(kept)
	if len(kept) > settings.TopK {
		kept = kept[:settings.TopK]
	}

	for _, c := range kept {
		resp.Results = append(resp.Results, s.hydrate(view, c))
	}
	logger.Info("Final results: %d", len(resp.Results))
	return resp, nil
}

// effective applies per-query overrides to the current settings.
func (s *SearchService) effective(opts domain.SearchOptions) (domain.SearchSettings, error) {
	settings := s.Settings()
	if opts.TopK != 0 {
		settings.TopK = opts.TopK
	}
	if opts.MinScore != nil {
		settings.MinScore = *opts.MinScore
	}
	return settings, settings.Validate()
}

// vectorCandidates runs stage one. A non-nil degradation means the vector
// signal is unavailable for this query.
func (s *SearchService) vectorCandidates(
	ctx context.Context, kb, query string, view driven.IndexView, limit int,
) ([]*candidate, *domain.RetrievalDegradation) {
	if s.embedder == nil {
		return nil, &domain.RetrievalDegradation{Component: "embedding", Reason: domain.ErrEmbeddingUnavailable.Error()}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &domain.RetrievalDegradation{Component: "embedding", Reason: err.Error()}
	}
	if dims := s.indexedDimensions(ctx, kb, view); dims > 0 && len(vec) != dims {
		return nil, &domain.RetrievalDegradation{
			Component: "embedding",
			Reason:    fmt.Sprintf("%s: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(vec), dims),
		}
	}

	var hits []domain.VectorHit
	if vectors := s.indexes.Vectors(); vectors != nil {
		hits, err = vectors.Search(ctx, kb, vec, limit)
		if err != nil {
			return nil, &domain.RetrievalDegradation{Component: "vector index", Reason: err.Error()}
		}
	} else {
		hits = view.NearestChunks(vec, limit)
	}

	candidates := make([]*candidate, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := view.Chunk(hit.ChunkID)
		if !ok {
			// external index ahead of the snapshot
			continue
		}
		candidates = append(candidates, &candidate{
			chunk:  chunk,
			vector: domain.RescaleSimilarity(hit.Similarity),
		})
	}
	return candidates, nil
}

// indexedDimensions returns the vector dimension kb is pinned to, or that of
// its stored embeddings when it is not pinned. Zero means unknown.
func (s *SearchService) indexedDimensions(ctx context.Context, kb string, view driven.IndexView) int {
	if base, err := s.indexes.KnowledgeBase(ctx, kb); err == nil && base.Dimensions > 0 {
		return base.Dimensions
	}
	dims := 0
	view.Chunks(func(c *domain.IndexedChunk) bool {
		dims = len(c.Embedding)
		return dims == 0
	})
	return dims
}

// keywordCandidates returns the best lexical matches with a positive score.
func (s *SearchService) keywordCandidates(
	terms []string, view driven.IndexView, stats domain.LexicalStats, limit int,
) []*candidate {
	var candidates []*candidate
	view.Chunks(func(chunk *domain.IndexedChunk) bool {
		if score := s.scorer.Score(terms, chunk, stats); score > 0 {
			candidates = append(candidates, &candidate{chunk: chunk, keyword: score})
		}
		return true
	})
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].keyword != candidates[j].keyword {
			return candidates[i].keyword > candidates[j].keyword
		}
		return candidates[i].chunk.Chunk.ChunkID < candidates[j].chunk.Chunk.ChunkID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func sortCandidates(cs []*candidate) {
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.vector != b.vector {
			return a.vector > b.vector
		}
		return a.chunk.Chunk.ChunkID < b.chunk.Chunk.ChunkID
	})
}

func (s *SearchService) hydrate(view driven.IndexView, c *candidate) domain.SearchResult {
	chunk := c.chunk.Chunk
	result := domain.SearchResult{
		ChunkID:      chunk.ChunkID,
		DocID:        chunk.DocID,
		Score:        c.score,
		VectorScore:  c.vector,
		KeywordScore: c.keyword,
		CitationKey:  chunk.PrimaryAnchor,
		Text:         chunk.Text,
	}
	if record, ok := view.Record(chunk.DocID); ok {
		result.CitationText = record.CitationText(chunk.PrimaryAnchor)
	}
	return result
}
