package domain

// SearchOptions overrides search settings for a single query.
// Zero values keep the configured defaults.
type SearchOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// MinScore drops results below this fused score.
	MinScore *float64
}

// SearchResult is one ranked chunk with its provenance.
type SearchResult struct {
	ChunkID string `json:"chunk_id" yaml:"chunk_id"`
	DocID   string `json:"doc_id" yaml:"doc_id"`

	// Score is the fused hybrid score.
	Score float64 `json:"score" yaml:"score"`

	// VectorScore is the rescaled cosine similarity in [0,1].
	VectorScore float64 `json:"vector_score" yaml:"vector_score"`

	// KeywordScore is the normalised lexical score in [0,1].
	KeywordScore float64 `json:"keyword_score" yaml:"keyword_score"`

	// CitationText is rendered from the primary anchor and document metadata.
	CitationText string `json:"citation_text" yaml:"citation_text"`

	// CitationKey is the chunk's primary anchor.
	CitationKey string `json:"citation_key" yaml:"citation_key"`

	// Text is the chunk text.
	Text string `json:"text" yaml:"text"`
}

// SearchResponse is the outcome of a search. A degraded response still
// carries results.
type SearchResponse struct {
	// Query is the query text.
	Query string `json:"query" yaml:"query"`

	// KnowledgeBase is the searched knowledge base.
	KnowledgeBase string `json:"knowledge_base" yaml:"knowledge_base"`

	// Results are ordered by score, vector score, then chunk id.
	Results []SearchResult `json:"results" yaml:"results"`

	// Degraded is set when part of the scoring signal was unavailable.
	Degraded bool `json:"degraded" yaml:"degraded"`

	// Warnings explain any degradation.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Degrade records a retrieval degradation on the response.
func (r *SearchResponse) Degrade(d RetrievalDegradation) {
	r.Degraded = true
	r.Warnings = append(r.Warnings, d.String())
}

// VectorHit is a nearest-neighbour match from a vector index.
type VectorHit struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// Similarity is the raw cosine similarity in [-1,1].
	Similarity float64
}

// IndexedChunk is a chunk as held by a retrieval index, with the lexical
// statistics used for keyword scoring.
type IndexedChunk struct {
	Chunk Chunk

	// Embedding is the chunk vector. Nil for keyword-only indexes.
	Embedding []float32

	// TermFreqs counts each normalised term in the chunk text.
	TermFreqs map[string]int

	// Length is the number of normalised terms.
	Length int
}

// LexicalStats are corpus statistics for keyword scoring.
type LexicalStats struct {
	// DocCount is the number of indexed chunks.
	DocCount int

	// AvgLength is the mean chunk length in terms.
	AvgLength float64

	// DocFreq returns how many chunks contain a term.
	DocFreq func(term string) int
}
