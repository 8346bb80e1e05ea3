package domain

import (
	"math"
	"time"
)

const unknownDescription = "Unknown"

// WeightTolerance is the allowed deviation of the search weight sum from 1.
const WeightTolerance = 1e-6

// ChunkingSettings configures the semantic chunker.
type ChunkingSettings struct {
	// MaxTokens bounds the size of a chunk.
	MaxTokens int `validate:"gt=0"`

	// Overlap is the number of tokens carried into the next chunk.
	Overlap int `validate:"gte=0"`

	// MinChunkSize is the smallest tail chunk emitted on its own.
	MinChunkSize int `validate:"gte=0"`

	// RespectBoundaries closes a chunk before an element that would not fit.
	RespectBoundaries bool
}

// Validate checks the cross-field chunking constraints.
func (c ChunkingSettings) Validate() error {
	switch {
	case c.MaxTokens <= 0:
		return NewConfigurationError("chunking.max_tokens", "must be positive, got %d", c.MaxTokens)
	case c.Overlap < 0:
		return NewConfigurationError("chunking.overlap", "must not be negative, got %d", c.Overlap)
	case c.Overlap >= c.MaxTokens:
		return NewConfigurationError("chunking.overlap", "must be smaller than max_tokens (%d >= %d)", c.Overlap, c.MaxTokens)
	case c.MinChunkSize < 0:
		return NewConfigurationError("chunking.min_chunk_size", "must not be negative, got %d", c.MinChunkSize)
	case c.MinChunkSize > c.MaxTokens:
		return NewConfigurationError("chunking.min_chunk_size", "must not exceed max_tokens (%d > %d)", c.MinChunkSize, c.MaxTokens)
	}
	return nil
}

// SearchSettings configures hybrid retrieval.
type SearchSettings struct {
	// VectorWeight weights the vector score in the fused score.
	VectorWeight float64 `validate:"gte=0,lte=1"`

	// KeywordWeight weights the keyword score in the fused score.
	KeywordWeight float64 `validate:"gte=0,lte=1"`

	// TopK is the default number of results.
	TopK int `validate:"gt=0"`

	// MinScore is the default fused-score cutoff.
	MinScore float64 `validate:"gte=0,lte=1"`
}

// Validate checks weight ranges and the weight sum.
func (s SearchSettings) Validate() error {
	switch {
	case s.VectorWeight < 0 || s.VectorWeight > 1:
		return NewConfigurationError("search.vector_weight", "must be in [0,1], got %g", s.VectorWeight)
	case s.KeywordWeight < 0 || s.KeywordWeight > 1:
		return NewConfigurationError("search.keyword_weight", "must be in [0,1], got %g", s.KeywordWeight)
	case math.Abs(s.VectorWeight+s.KeywordWeight-1) > WeightTolerance:
		return NewConfigurationError("search.vector_weight",
			"vector_weight + keyword_weight must equal 1, got %g", s.VectorWeight+s.KeywordWeight)
	case s.TopK <= 0:
		return NewConfigurationError("search.top_k", "must be positive, got %d", s.TopK)
	case s.MinScore < 0 || s.MinScore > 1:
		return NewConfigurationError("search.min_score", "must be in [0,1], got %g", s.MinScore)
	}
	return nil
}

// QueuePolicy decides what happens when the ingest queue is full.
type QueuePolicy string

// Available queue policies.
const (
	// QueuePolicyBlock makes enqueue wait for free capacity.
	QueuePolicyBlock QueuePolicy = "block"

	// QueuePolicyReject reports the document as rejected.
	QueuePolicyReject QueuePolicy = "reject"
)

// IsValid returns true if the policy is recognised.
func (p QueuePolicy) IsValid() bool {
	return p == QueuePolicyBlock || p == QueuePolicyReject
}

// ProcessingSettings configures the ingest worker pool.
type ProcessingSettings struct {
	// MaxWorkers is the number of documents processed concurrently.
	MaxWorkers int `validate:"gt=0"`

	// QueueCapacity bounds documents waiting for a worker.
	QueueCapacity int `validate:"gt=0"`

	// QueuePolicy is applied when the queue is full.
	QueuePolicy QueuePolicy `validate:"oneof=block reject"`

	// EmbedBatchSize is the number of chunks embedded per call.
	EmbedBatchSize int `validate:"gt=0"`
}

// Validate checks the processing settings.
func (p ProcessingSettings) Validate() error {
	switch {
	case p.MaxWorkers <= 0:
		return NewConfigurationError("processing.max_workers", "must be positive, got %d", p.MaxWorkers)
	case p.QueueCapacity <= 0:
		return NewConfigurationError("processing.queue_capacity", "must be positive, got %d", p.QueueCapacity)
	case !p.QueuePolicy.IsValid():
		return NewConfigurationError("processing.queue_policy", "unknown policy %q", p.QueuePolicy)
	case p.EmbedBatchSize <= 0:
		return NewConfigurationError("processing.embed_batch_size", "must be positive, got %d", p.EmbedBatchSize)
	}
	return nil
}

// EmbeddingProvider identifies the embedding backend.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderHash is the local feature-hashing embedder.
	EmbeddingProviderHash EmbeddingProvider = "hash"

	// EmbeddingProviderOllama is a local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	return p == EmbeddingProviderHash || p == EmbeddingProviderOllama
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case EmbeddingProviderHash:
		return "Feature hashing (local, no model)"
	case EmbeddingProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings configures the embedding collaborator.
type EmbeddingSettings struct {
	// Provider is the embedding backend.
	Provider EmbeddingProvider `validate:"oneof=hash ollama"`

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string `validate:"omitempty,url"`

	// Dimensions is the vector size pinned for new knowledge bases.
	Dimensions int `validate:"gt=0"`

	// RequestsPerSecond rate-limits embedding calls. Zero disables limiting.
	RequestsPerSecond float64 `validate:"gte=0"`

	// CacheAddr is the Redis address of the embedding cache. Empty disables it.
	CacheAddr string

	// CacheTTL is how long cached embeddings live.
	CacheTTL time.Duration
}

// VectorBackend identifies where stage-one vector search runs.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendMemory searches the in-process snapshot.
	VectorBackendMemory VectorBackend = "memory"

	// VectorBackendPostgres searches a pgvector table.
	VectorBackendPostgres VectorBackend = "postgres"
)

// StorageSettings configures persistence.
type StorageSettings struct {
	// DataDir holds the SQLite database.
	DataDir string

	// VectorBackend selects the stage-one vector search backend.
	VectorBackend VectorBackend `validate:"oneof=memory postgres"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `validate:"required_if=VectorBackend postgres"`
}

// AppSettings is the complete application configuration.
type AppSettings struct {
	Chunking   ChunkingSettings
	Search     SearchSettings
	Processing ProcessingSettings
	Embedding  EmbeddingSettings
	Storage    StorageSettings
}

// Validate runs every cross-field check and returns the first failure.
func (s *AppSettings) Validate() error {
	if err := s.Chunking.Validate(); err != nil {
		return err
	}
	if err := s.Search.Validate(); err != nil {
		return err
	}
	return s.Processing.Validate()
}

// DefaultChunkingSettings returns the default chunking configuration.
func DefaultChunkingSettings() ChunkingSettings {
	return ChunkingSettings{
		MaxTokens:         512,
		Overlap:           64,
		MinChunkSize:      100,
		RespectBoundaries: true,
	}
}

// DefaultSearchSettings returns the default search configuration.
func DefaultSearchSettings() SearchSettings {
	return SearchSettings{
		VectorWeight:  0.7,
		KeywordWeight: 0.3,
		TopK:          10,
		MinScore:      0.5,
	}
}

// DefaultAppSettings returns the default configuration.
func DefaultAppSettings() *AppSettings {
	return &AppSettings{
		Chunking: DefaultChunkingSettings(),
		Search:   DefaultSearchSettings(),
		Processing: ProcessingSettings{
			MaxWorkers:     4,
			QueueCapacity:  64,
			QueuePolicy:    QueuePolicyBlock,
			EmbedBatchSize: 50,
		},
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingProviderHash,
			Model:      "nomic-embed-text",
			Dimensions: 768,
			CacheTTL:   24 * time.Hour,
		},
		Storage: StorageSettings{
			VectorBackend: VectorBackendMemory,
		},
	}
}
