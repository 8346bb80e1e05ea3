package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/citekit/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/citekit/internal/adapters/driven/config/file"
	"github.com/custodia-labs/citekit/internal/adapters/driven/embedding/cached"
	"github.com/custodia-labs/citekit/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/citekit/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/citekit/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/citekit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/citekit/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/citekit/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/citekit/internal/adapters/driving/cli"
	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/core/services"
	"github.com/custodia-labs/citekit/internal/extractors"
	"github.com/custodia-labs/citekit/internal/lexical"
	"github.com/custodia-labs/citekit/internal/logger"
	"github.com/custodia-labs/citekit/internal/postprocessors"
)

// closer collects cleanup functions and runs them in reverse order.
type closer []func() error

func (c *closer) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closer) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bootstrap builds every service from configuration.
func bootstrap(ctx context.Context, opts cli.Options) (_ *cli.Services, err error) {
	configDir, err := resolveConfigDir(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	if err := file.LoadDotEnv(".env", filepath.Join(configDir, ".env")); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, services.WithEnvironment(os.LookupEnv))
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}

	var cleanup closer
	defer func() {
		if err != nil {
			if cerr := cleanup.Close(); cerr != nil {
				logger.Warn("cleanup after failed start: %v", cerr)
			}
		}
	}()

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = settings.Storage.DataDir
	}
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	cleanup.add(store.Close)

	embedder, err := newEmbedder(ctx, settings.Embedding)
	if err != nil {
		return nil, err
	}
	cleanup.add(embedder.Close)

	vectors, err := newVectorIndex(ctx, settings.Storage)
	if err != nil {
		return nil, err
	}
	if vectors != nil {
		cleanup.add(vectors.Close)
	}

	indexes := services.NewIndexSet(store, vectors, func() driven.RetrievalIndex {
		return memory.NewRetrievalIndex()
	})

	searchService, err := services.NewSearchService(indexes, embedder, lexical.NewBM25(), settings.Search)
	if err != nil {
		return nil, err
	}

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Chunking)
	if err != nil {
		return nil, err
	}

	ingestService, err := services.NewIngestService(store, pipeline, embedder, indexes, settings.Processing)
	if err != nil {
		return nil, err
	}
	cleanup.add(ingestService.Close)

	return &cli.Services{
		Search:              searchService,
		Ingest:              ingestService,
		KnowledgeBase:       services.NewKnowledgeBaseService(store, indexes, embedder),
		Citation:            services.NewCitationService(store),
		Settings:            settingsService,
		Extractors:          extractors.NewDefaultRegistry(),
		ApplySearchSettings: searchService.UpdateSettings,
		WatchConfig: func(ctx context.Context, onChange func() error) error {
			w := file.NewWatcher(configStore)
			w.Subscribe("search", onChange)
			return w.Run(ctx)
		},
		Close: cleanup.Close,
	}, nil
}

func resolveConfigDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".citekit"), nil
}

// newEmbedder builds the configured provider wrapped with rate limiting and
// an optional Redis cache. An unreachable cache is logged and skipped.
func newEmbedder(ctx context.Context, cfg domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	var base driven.EmbeddingService
	switch cfg.Provider {
	case domain.EmbeddingProviderHash:
		base = hashing.NewEmbeddingService(cfg.Dimensions)
	case domain.EmbeddingProviderOllama:
		svc, err := ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("creating ollama embedder: %w", err)
		}
		base = svc
	default:
		return nil, domain.NewConfigurationError("embedding.provider", "unknown provider %q", cfg.Provider)
	}

	embedder := ratelimit.New(base, cfg.RequestsPerSecond)
	if cfg.CacheAddr == "" {
		return embedder, nil
	}

	cache, err := redis.New(ctx, redis.Config{Addr: cfg.CacheAddr, TTL: cfg.CacheTTL})
	if err != nil {
		logger.Warn("Embedding cache unavailable, continuing without it: %v", err)
		return embedder, nil
	}
	return cached.New(embedder, cache), nil
}

// newVectorIndex returns the external vector index, or nil for the
// in-memory backend.
func newVectorIndex(ctx context.Context, cfg domain.StorageSettings) (driven.VectorIndex, error) {
	if cfg.VectorBackend != domain.VectorBackendPostgres {
		return nil, nil
	}
	index, err := postgres.NewVectorIndex(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connecting vector index: %w", err)
	}
	return index, nil
}
