// Package cached wraps an embedding service with a read-through cache.
package cached

import (
	"context"

	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/logger"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// Service serves embeddings from cache and fills misses from the inner
// service. Cache failures are logged and bypassed.
type Service struct {
	inner driven.EmbeddingService
	cache driven.EmbeddingCache
}

// New wraps inner with cache. A nil cache returns inner.
func New(inner driven.EmbeddingService, cache driven.EmbeddingCache) driven.EmbeddingService {
	if cache == nil {
		return inner
	}
	return &Service{inner: inner, cache: cache}
}

// Embed returns the cached vector or computes and stores it.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.lookup(ctx, text); ok {
		return vec, nil
	}
	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.store(ctx, text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := s.lookup(ctx, text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	vecs, err := s.inner.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		out[i] = vecs[j]
		s.store(ctx, texts[i], vecs[j])
	}
	return out, nil
}

func (s *Service) lookup(ctx context.Context, text string) ([]float32, bool) {
	vec, ok, err := s.cache.Get(ctx, s.inner.ModelName(), text)
	if err != nil {
		logger.Debug("embedding cache get failed: %v", err)
		return nil, false
	}
	if !ok || len(vec) != s.inner.Dimensions() {
		return nil, false
	}
	return vec, true
}

func (s *Service) store(ctx context.Context, text string, vec []float32) {
	if err := s.cache.Set(ctx, s.inner.ModelName(), text, vec); err != nil {
		logger.Debug("embedding cache set failed: %v", err)
	}
}

// Dimensions returns the inner service's vector size.
func (s *Service) Dimensions() int { return s.inner.Dimensions() }

// ModelName returns the inner service's model.
func (s *Service) ModelName() string { return s.inner.ModelName() }

// Ping checks the inner service.
func (s *Service) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close closes the cache and the inner service.
func (s *Service) Close() error {
	cacheErr := s.cache.Close()
	if err := s.inner.Close(); err != nil {
		return err
	}
	return cacheErr
}
