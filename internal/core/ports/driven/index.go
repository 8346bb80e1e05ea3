package driven

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

// DocumentUpdate is a complete new version of one document's index entries.
type DocumentUpdate struct {
	Record     *domain.CitationRecord
	TextHash   string
	Chunks     []domain.Chunk
	Embeddings [][]float32
}

// RetrievalIndex is the shared vector + lexical index of one knowledge base.
// Writes are serialised; View returns an immutable snapshot so readers see
// the index as of the call, never a partially applied write.
type RetrievalIndex interface {
	// Apply replaces the chunk set of update.Record.DocID in one step.
	Apply(ctx context.Context, update DocumentUpdate) error

	// Remove deletes every chunk of docID. Unknown documents are a no-op.
	Remove(ctx context.Context, docID string) error

	// View returns the current snapshot.
	View() IndexView
}

// IndexView is a read-only snapshot of a retrieval index.
type IndexView interface {
	// Version increases with every applied write.
	Version() uint64

	// ChunkCount returns the number of chunks.
	ChunkCount() int

	// DocumentCount returns the number of documents.
	DocumentCount() int

	// Chunk returns an indexed chunk by id.
	Chunk(chunkID string) (*domain.IndexedChunk, bool)

	// Record returns the citation record of a document.
	Record(docID string) (*domain.CitationRecord, bool)

	// NearestChunks returns the k chunks most similar to query by cosine similarity.
	NearestChunks(query []float32, k int) []domain.VectorHit

	// Chunks calls fn for every chunk until fn returns false.
	Chunks(fn func(*domain.IndexedChunk) bool)

	// Stats returns the corpus statistics used for lexical scoring.
	Stats() domain.LexicalStats
}

// KeywordScorer computes a normalised lexical score in [0,1] between query
// terms and an indexed chunk.
type KeywordScorer interface {
	// Name identifies the formula, e.g. "bm25".
	Name() string

	// Terms normalises text into scoring terms.
	Terms(text string) []string

	// Score rates chunk against the distinct query terms.
	Score(terms []string, chunk *domain.IndexedChunk, stats domain.LexicalStats) float64
}
