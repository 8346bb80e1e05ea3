// Package hashing provides a local embedding service built on feature
// hashing. It needs no model server and is deterministic, which makes it the
// default provider for tests and offline use.
package hashing

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/lexical"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultDimensions = 256
	ModelName         = "feature-hash"
)

// EmbeddingService hashes terms and adjacent term pairs into a fixed number
// of signed buckets, weights them by log term frequency and L2 normalises
// the result.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a hashing embedder. Non-positive dimensions
// fall back to DefaultDimensions.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.vector(text), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.vector(text)
	}
	return out, nil
}

func (s *EmbeddingService) vector(text string) []float32 {
	terms := lexical.Terms(text)
	features := make(map[string]int, len(terms)*2)
	for i, t := range terms {
		features[t]++
		if i > 0 {
			features[terms[i-1]+" "+t]++
		}
	}

	acc := make([]float64, s.dimensions)
	for f, n := range features {
		h := xxhash.Sum64String(f)
		idx := int(h % uint64(s.dimensions))
		w := 1 + math.Log(float64(n))
		if h&(1<<63) != 0 {
			w = -w
		}
		acc[idx] += w
	}

	v := make([]float32, s.dimensions)
	for i, x := range acc {
		v[i] = float32(x)
	}
	return domain.Normalize(v)
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the embedder name.
func (s *EmbeddingService) ModelName() string {
	return ModelName
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
