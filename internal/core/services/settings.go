package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvPrefix prefixes environment overrides: search.top_k is read from
// CITEKIT_SEARCH_TOP_K.
const EnvPrefix = "CITEKIT_"

// Config keys for settings storage.
const (
	KeyMaxTokens         = "chunking.max_tokens"
	KeyOverlap           = "chunking.overlap"
	KeyMinChunkSize      = "chunking.min_chunk_size"
	KeyRespectBoundaries = "chunking.respect_boundaries"

	KeyVectorWeight  = "search.vector_weight"
	KeyKeywordWeight = "search.keyword_weight"
	KeyTopK          = "search.top_k"
	KeyMinScore      = "search.min_score"

	KeyMaxWorkers     = "processing.max_workers"
	KeyQueueCapacity  = "processing.queue_capacity"
	KeyQueuePolicy    = "processing.queue_policy"
	KeyEmbedBatchSize = "processing.embed_batch_size"

	KeyEmbedProvider   = "embedding.provider"
	KeyEmbedModel      = "embedding.model"
	KeyEmbedBaseURL    = "embedding.base_url"
	KeyEmbedDimensions = "embedding.dimensions"
	KeyEmbedRate       = "embedding.requests_per_second"
	KeyEmbedCacheAddr  = "embedding.cache_addr"
	KeyEmbedCacheTTL   = "embedding.cache_ttl"

	KeyDataDir       = "storage.data_dir"
	KeyVectorBackend = "storage.vector_backend"
	KeyPostgresDSN   = "storage.postgres_dsn"
)

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithEnvironment sets the lookup used for CITEKIT_* overrides, usually
// os.LookupEnv.
func WithEnvironment(lookup func(string) (string, bool)) SettingsOption {
	return func(s *SettingsService) {
		s.lookupEnv = lookup
	}
}

// SettingsService resolves application settings from a config store with
// environment overrides. Resolved settings are validated with struct tags
// and the cross-field rules of the domain.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
	validate    *validator.Validate
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		lookupEnv:   func(string) (string, bool) { return "", false },
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnvKey returns the environment variable overriding key.
func EnvKey(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Get resolves and validates the current settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	return s.resolve(nil)
}

// resolve builds settings from defaults, the config store, pending
// overrides and the environment, in increasing precedence.
func (s *SettingsService) resolve(pending map[string]any) (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()
	r := &resolver{s: s, pending: pending}

	settings := &domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			MaxTokens:         r.int(KeyMaxTokens, d.Chunking.MaxTokens),
			Overlap:           r.int(KeyOverlap, d.Chunking.Overlap),
			MinChunkSize:      r.int(KeyMinChunkSize, d.Chunking.MinChunkSize),
			RespectBoundaries: r.bool(KeyRespectBoundaries, d.Chunking.RespectBoundaries),
		},
		Search: domain.SearchSettings{
			VectorWeight:  r.float(KeyVectorWeight, d.Search.VectorWeight),
			KeywordWeight: r.float(KeyKeywordWeight, d.Search.KeywordWeight),
			TopK:          r.int(KeyTopK, d.Search.TopK),
			MinScore:      r.float(KeyMinScore, d.Search.MinScore),
		},
		Processing: domain.ProcessingSettings{
			MaxWorkers:     r.int(KeyMaxWorkers, d.Processing.MaxWorkers),
			QueueCapacity:  r.int(KeyQueueCapacity, d.Processing.QueueCapacity),
			QueuePolicy:    domain.QueuePolicy(r.string(KeyQueuePolicy, string(d.Processing.QueuePolicy))),
			EmbedBatchSize: r.int(KeyEmbedBatchSize, d.Processing.EmbedBatchSize),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          domain.EmbeddingProvider(r.string(KeyEmbedProvider, string(d.Embedding.Provider))),
			Model:             r.string(KeyEmbedModel, d.Embedding.Model),
			BaseURL:           r.string(KeyEmbedBaseURL, d.Embedding.BaseURL),
			Dimensions:        r.int(KeyEmbedDimensions, d.Embedding.Dimensions),
			RequestsPerSecond: r.float(KeyEmbedRate, d.Embedding.RequestsPerSecond),
			CacheAddr:         r.string(KeyEmbedCacheAddr, d.Embedding.CacheAddr),
			CacheTTL:          r.duration(KeyEmbedCacheTTL, d.Embedding.CacheTTL),
		},
		Storage: domain.StorageSettings{
			DataDir:       r.string(KeyDataDir, d.Storage.DataDir),
			VectorBackend: domain.VectorBackend(r.string(KeyVectorBackend, string(d.Storage.VectorBackend))),
			PostgresDSN:   r.string(KeyPostgresDSN, d.Storage.PostgresDSN),
		},
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := s.check(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save validates and persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := s.check(settings); err != nil {
		return err
	}
	values := []struct {
		key   string
		value any
	}{
		{KeyMaxTokens, settings.Chunking.MaxTokens},
		{KeyOverlap, settings.Chunking.Overlap},
		{KeyMinChunkSize, settings.Chunking.MinChunkSize},
		{KeyRespectBoundaries, settings.Chunking.RespectBoundaries},
		{KeyVectorWeight, settings.Search.VectorWeight},
		{KeyKeywordWeight, settings.Search.KeywordWeight},
		{KeyTopK, settings.Search.TopK},
		{KeyMinScore, settings.Search.MinScore},
		{KeyMaxWorkers, settings.Processing.MaxWorkers},
		{KeyQueueCapacity, settings.Processing.QueueCapacity},
		{KeyQueuePolicy, string(settings.Processing.QueuePolicy)},
		{KeyEmbedBatchSize, settings.Processing.EmbedBatchSize},
		{KeyEmbedProvider, settings.Embedding.Provider.String()},
		{KeyEmbedModel, settings.Embedding.Model},
		{KeyEmbedBaseURL, settings.Embedding.BaseURL},
		{KeyEmbedDimensions, settings.Embedding.Dimensions},
		{KeyEmbedRate, settings.Embedding.RequestsPerSecond},
		{KeyEmbedCacheAddr, settings.Embedding.CacheAddr},
		{KeyEmbedCacheTTL, settings.Embedding.CacheTTL.String()},
		{KeyDataDir, settings.Storage.DataDir},
		{KeyVectorBackend, string(settings.Storage.VectorBackend)},
		{KeyPostgresDSN, settings.Storage.PostgresDSN},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set parses the given dotted keys, validates the settings they produce and
// persists them together. Nothing is written when any value is invalid.
func (s *SettingsService) Set(values map[string]string) error {
	pending := make(map[string]any, len(values))
	for key, value := range values {
		parsed, err := parseValue(key, value)
		if err != nil {
			return err
		}
		pending[key] = parsed
	}
	if _, err := s.resolve(pending); err != nil {
		return err
	}
	keys := make([]string, 0, len(pending))
	for key := range pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := s.configStore.Set(key, pending[key]); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	_, err := s.Get()
	return err
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return *domain.DefaultAppSettings()
}

// check runs tag validation, then the cross-field rules.
func (s *SettingsService) check(settings *domain.AppSettings) error {
	if err := s.validate.Struct(settings); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.NewConfigurationError(configKey(fe.StructNamespace()),
				"failed %q validation (value %v)", fe.Tag(), fe.Value())
		}
		return domain.NewConfigurationError("settings", "%v", err)
	}
	return settings.Validate()
}

// configKey maps "AppSettings.Search.VectorWeight" to "search.vector_weight".
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseValue converts a command-line value to the type stored for key.
func parseValue(key, value string) (any, error) {
	switch key {
	case KeyMaxTokens, KeyOverlap, KeyMinChunkSize, KeyTopK, KeyMaxWorkers,
		KeyQueueCapacity, KeyEmbedBatchSize, KeyEmbedDimensions:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, domain.NewConfigurationError(key, "not an integer: %q", value)
		}
		return n, nil
	case KeyVectorWeight, KeyKeywordWeight, KeyMinScore, KeyEmbedRate:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, domain.NewConfigurationError(key, "not a number: %q", value)
		}
		return f, nil
	case KeyRespectBoundaries:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, domain.NewConfigurationError(key, "not a boolean: %q", value)
		}
		return b, nil
	case KeyEmbedCacheTTL:
		if _, err := time.ParseDuration(value); err != nil {
			return nil, domain.NewConfigurationError(key, "not a duration: %q", value)
		}
		return value, nil
	case KeyQueuePolicy, KeyEmbedProvider, KeyEmbedModel, KeyEmbedBaseURL,
		KeyEmbedCacheAddr, KeyDataDir, KeyVectorBackend, KeyPostgresDSN:
		return value, nil
	default:
		return nil, domain.NewConfigurationError(key, "unknown setting")
	}
}

// resolver reads keys with environment overrides taking precedence over
// the config store. The first parse failure is kept in err.
type resolver struct {
	s       *SettingsService
	pending map[string]any
	err     error
}

func (r *resolver) fail(key, format string, args ...any) {
	if r.err == nil {
		r.err = domain.NewConfigurationError(key, format, args...)
	}
}

func (r *resolver) env(key string) (string, bool) {
	v, ok := r.s.lookupEnv(EnvKey(key))
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *resolver) string(key, def string) string {
	if v, ok := r.env(key); ok {
		return v
	}
	if v, ok := r.pending[key].(string); ok {
		return v
	}
	if v := r.s.configStore.GetString(key); v != "" {
		return v
	}
	return def
}

func (r *resolver) int(key string, def int) int {
	if v, ok := r.env(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, "%s is not an integer: %q", EnvKey(key), v)
			return def
		}
		return n
	}
	if v, ok := r.pending[key].(int); ok {
		return v
	}
	if _, ok := r.s.configStore.Get(key); ok {
		return r.s.configStore.GetInt(key)
	}
	return def
}

func (r *resolver) float(key string, def float64) float64 {
	if v, ok := r.env(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, "%s is not a number: %q", EnvKey(key), v)
			return def
		}
		return f
	}
	if v, ok := r.pending[key].(float64); ok {
		return v
	}
	if _, ok := r.s.configStore.Get(key); ok {
		return r.s.configStore.GetFloat(key)
	}
	return def
}

func (r *resolver) bool(key string, def bool) bool {
	if v, ok := r.env(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, "%s is not a boolean: %q", EnvKey(key), v)
			return def
		}
		return b
	}
	if v, ok := r.pending[key].(bool); ok {
		return v
	}
	if _, ok := r.s.configStore.Get(key); ok {
		return r.s.configStore.GetBool(key)
	}
	return def
}

func (r *resolver) duration(key string, def time.Duration) time.Duration {
	v := r.string(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, "not a duration: %q", v)
		return def
	}
	return d
}
