package postprocessors

import (
	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/postprocessors/chunker"
	"github.com/custodia-labs/citekit/internal/postprocessors/invariants"
)

// DefaultProcessors is the processor order used for ingestion.
var DefaultProcessors = []string{chunker.Name, invariants.Name}

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register(chunker.Name, buildChunker)
	r.Register(invariants.Name, buildInvariants)
}

// NewDefaultPipeline builds the default pipeline for the chunking settings.
// Invalid settings fail with a *domain.ConfigurationError.
func NewDefaultPipeline(settings domain.ChunkingSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(DefaultProcessors, map[string]map[string]any{
		chunker.Name: ChunkingConfig(settings),
	})
}

// ChunkingConfig converts chunking settings into the generic config map
// accepted by the semantic chunker builder.
func ChunkingConfig(s domain.ChunkingSettings) map[string]any {
	return map[string]any{
		"max_tokens":         s.MaxTokens,
		"overlap":            s.Overlap,
		"min_chunk_size":     s.MinChunkSize,
		"respect_boundaries": s.RespectBoundaries,
	}
}

// buildChunker creates the semantic chunker from generic config.
// Supported config keys:
//   - max_tokens (int): Maximum tokens per chunk (default: 512)
//   - overlap (int): Tokens carried into the next chunk (default: 64)
//   - min_chunk_size (int): Smallest standalone tail chunk (default: 100)
//   - respect_boundaries (bool): Close chunks at element boundaries (default: true)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if v, ok := getIntFromConfig(cfg, "max_tokens"); ok {
			opts = append(opts, chunker.WithMaxTokens(v))
		}
		if v, ok := getIntFromConfig(cfg, "overlap"); ok {
			opts = append(opts, chunker.WithOverlap(v))
		}
		if v, ok := getIntFromConfig(cfg, "min_chunk_size"); ok {
			opts = append(opts, chunker.WithMinChunkSize(v))
		}
		if v, ok := cfg["respect_boundaries"].(bool); ok {
			opts = append(opts, chunker.WithRespectBoundaries(v))
		}
	}

	return chunker.New(opts...)
}

// buildInvariants creates the chunk invariant checker. It takes no config.
func buildInvariants(_ map[string]any) (driven.PostProcessor, error) {
	return invariants.New(), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
