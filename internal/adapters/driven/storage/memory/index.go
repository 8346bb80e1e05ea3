package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/lexical"
)

// Ensure RetrievalIndex implements the interface.
var _ driven.RetrievalIndex = (*RetrievalIndex)(nil)

// RetrievalIndex is a copy-on-write in-memory vector and lexical index.
// Writers build a new snapshot under a mutex and publish it with an atomic
// swap; readers load the current snapshot without locking.
type RetrievalIndex struct {
	mu       sync.Mutex
	current  atomic.Pointer[snapshot]
	tokenize func(string) []string
}

// IndexOption configures a RetrievalIndex.
type IndexOption func(*RetrievalIndex)

// WithTokenizer sets the term function used for lexical statistics.
func WithTokenizer(fn func(string) []string) IndexOption {
	return func(ri *RetrievalIndex) {
		if fn != nil {
			ri.tokenize = fn
		}
	}
}

// NewRetrievalIndex creates an empty index.
func NewRetrievalIndex(opts ...IndexOption) *RetrievalIndex {
	ri := &RetrievalIndex{tokenize: lexical.Terms}
	for _, opt := range opts {
		opt(ri)
	}
	ri.current.Store(&snapshot{
		docs:    make(map[string]*docEntry),
		chunks:  make(map[string]*domain.IndexedChunk),
		docFreq: make(map[string]int),
	})
	return ri
}

// Apply replaces every chunk of the updated document in one step.
func (ri *RetrievalIndex) Apply(ctx context.Context, update driven.DocumentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if update.Record == nil || update.Record.DocID == "" {
		return fmt.Errorf("%w: update without citation record", domain.ErrInvalidInput)
	}
	if update.Embeddings != nil && len(update.Embeddings) != len(update.Chunks) {
		return fmt.Errorf("%w: %d embeddings for %d chunks",
			domain.ErrInvalidInput, len(update.Embeddings), len(update.Chunks))
	}

	entries := make([]*domain.IndexedChunk, len(update.Chunks))
	for i, c := range update.Chunks {
		if c.DocID != update.Record.DocID {
			return fmt.Errorf("%w: chunk %s belongs to %s, not %s",
				domain.ErrInvalidInput, c.ChunkID, c.DocID, update.Record.DocID)
		}
		freqs, n := lexical.Frequencies(ri.tokenize(c.Text))
		entry := &domain.IndexedChunk{Chunk: c, TermFreqs: freqs, Length: n}
		if update.Embeddings != nil {
			entry.Embedding = update.Embeddings[i]
		}
		entries[i] = entry
	}

	ri.mu.Lock()
	defer ri.mu.Unlock()

	next := ri.current.Load().clone()
	next.drop(update.Record.DocID)
	next.add(update.Record, entries)
	ri.current.Store(next)
	return nil
}

// Remove deletes every chunk of docID.
func (ri *RetrievalIndex) Remove(ctx context.Context, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ri.mu.Lock()
	defer ri.mu.Unlock()

	cur := ri.current.Load()
	if _, ok := cur.docs[docID]; !ok {
		return nil
	}
	next := cur.clone()
	next.drop(docID)
	ri.current.Store(next)
	return nil
}

// View returns the current snapshot.
func (ri *RetrievalIndex) View() driven.IndexView {
	return ri.current.Load()
}

type docEntry struct {
	record   *domain.CitationRecord
	chunkIDs []string
}

// snapshot is never mutated after it is published.
type snapshot struct {
	version  uint64
	docs     map[string]*docEntry
	chunks   map[string]*domain.IndexedChunk
	docFreq  map[string]int
	totalLen int
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		version:  s.version + 1,
		docs:     make(map[string]*docEntry, len(s.docs)+1),
		chunks:   make(map[string]*domain.IndexedChunk, len(s.chunks)),
		docFreq:  make(map[string]int, len(s.docFreq)),
		totalLen: s.totalLen,
	}
	for k, v := range s.docs {
		next.docs[k] = v
	}
	for k, v := range s.chunks {
		next.chunks[k] = v
	}
	for k, v := range s.docFreq {
		next.docFreq[k] = v
	}
	return next
}

func (s *snapshot) drop(docID string) {
	entry, ok := s.docs[docID]
	if !ok {
		return
	}
	for _, id := range entry.chunkIDs {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		for term := range c.TermFreqs {
			if s.docFreq[term] <= 1 {
				delete(s.docFreq, term)
			} else {
				s.docFreq[term]--
			}
		}
		s.totalLen -= c.Length
		delete(s.chunks, id)
	}
	delete(s.docs, docID)
}

func (s *snapshot) add(record *domain.CitationRecord, entries []*domain.IndexedChunk) {
	ids := make([]string, len(entries))
	for i, c := range entries {
		ids[i] = c.Chunk.ChunkID
		s.chunks[c.Chunk.ChunkID] = c
		for term := range c.TermFreqs {
			s.docFreq[term]++
		}
		s.totalLen += c.Length
	}
	s.docs[record.DocID] = &docEntry{record: record, chunkIDs: ids}
}

func (s *snapshot) Version() uint64 { return s.version }

func (s *snapshot) ChunkCount() int { return len(s.chunks) }

func (s *snapshot) DocumentCount() int { return len(s.docs) }

func (s *snapshot) Chunk(chunkID string) (*domain.IndexedChunk, bool) {
	c, ok := s.chunks[chunkID]
	return c, ok
}

func (s *snapshot) Record(docID string) (*domain.CitationRecord, bool) {
	entry, ok := s.docs[docID]
	if !ok {
		return nil, false
	}
	return entry.record, true
}

// NearestChunks scans every embedded chunk. Ties break on chunk id.
func (s *snapshot) NearestChunks(query []float32, k int) []domain.VectorHit {
	if k <= 0 || len(query) == 0 {
		return nil
	}
	hits := make([]domain.VectorHit, 0, len(s.chunks))
	for id, c := range s.chunks {
		if len(c.Embedding) != len(query) {
			continue
		}
		hits = append(hits, domain.VectorHit{
			ChunkID:    id,
			Similarity: domain.CosineSimilarity(query, c.Embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (s *snapshot) Chunks(fn func(*domain.IndexedChunk) bool) {
	for _, c := range s.chunks {
		if !fn(c) {
			return
		}
	}
}

func (s *snapshot) Stats() domain.LexicalStats {
	stats := domain.LexicalStats{
		DocCount: len(s.chunks),
		DocFreq:  func(term string) int { return s.docFreq[term] },
	}
	if len(s.chunks) > 0 {
		stats.AvgLength = float64(s.totalLen) / float64(len(s.chunks))
	}
	return stats
}
