// Package ratelimit wraps an embedding service with a token bucket so bulk
// ingestion does not overrun a model server.
package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// Service limits the request rate of an inner embedding service.
// Each Embed or EmbedBatch call is one request.
type Service struct {
	inner   driven.EmbeddingService
	limiter *rate.Limiter
}

// New wraps inner with a limiter allowing requestsPerSecond sustained
// requests. A non-positive rate disables limiting and returns inner.
func New(inner driven.EmbeddingService, requestsPerSecond float64) driven.EmbeddingService {
	if requestsPerSecond <= 0 {
		return inner
	}
	burst := int(math.Ceil(requestsPerSecond))
	return &Service{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Embed waits for a token, then embeds text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Embed(ctx, text)
}

// EmbedBatch waits for a token, then embeds texts in one request.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the inner service's vector size.
func (s *Service) Dimensions() int { return s.inner.Dimensions() }

// ModelName returns the inner service's model.
func (s *Service) ModelName() string { return s.inner.ModelName() }

// Ping is not rate limited.
func (s *Service) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close closes the inner service.
func (s *Service) Close() error { return s.inner.Close() }
