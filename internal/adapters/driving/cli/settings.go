package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change chunking, search, processing, embedding and storage settings.

Settings are read from ~/.citekit/config.toml. Environment variables of the
form CITEKIT_SEARCH_TOP_K override the file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key=value...]",
	Short: "Change one or more settings",
	Long: `Change settings by dotted key. All values are validated together and
nothing is written if any of them is invalid.

Example:
  citekit settings set search.vector_weight=0.6 search.keyword_weight=0.4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSettingsSet,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective settings",
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  max_tokens:         %d\n", settings.Chunking.MaxTokens)
	cmd.Printf("  overlap:            %d\n", settings.Chunking.Overlap)
	cmd.Printf("  min_chunk_size:     %d\n", settings.Chunking.MinChunkSize)
	cmd.Printf("  respect_boundaries: %t\n", settings.Chunking.RespectBoundaries)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  vector_weight:  %g\n", settings.Search.VectorWeight)
	cmd.Printf("  keyword_weight: %g\n", settings.Search.KeywordWeight)
	cmd.Printf("  top_k:          %d\n", settings.Search.TopK)
	cmd.Printf("  min_score:      %g\n", settings.Search.MinScore)
	cmd.Println()

	cmd.Println("[Processing]")
	cmd.Printf("  max_workers:      %d\n", settings.Processing.MaxWorkers)
	cmd.Printf("  queue_capacity:   %d\n", settings.Processing.QueueCapacity)
	cmd.Printf("  queue_policy:     %s\n", settings.Processing.QueuePolicy)
	cmd.Printf("  embed_batch_size: %d\n", settings.Processing.EmbedBatchSize)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  provider:   %s\n", settings.Embedding.Provider.Description())
	if settings.Embedding.Model != "" {
		cmd.Printf("  model:      %s\n", settings.Embedding.Model)
	}
	if settings.Embedding.Provider == domain.EmbeddingProviderOllama {
		cmd.Printf("  base_url:   %s\n", settings.Embedding.BaseURL)
	}
	cmd.Printf("  dimensions: %d\n", settings.Embedding.Dimensions)
	if settings.Embedding.RequestsPerSecond > 0 {
		cmd.Printf("  requests_per_second: %g\n", settings.Embedding.RequestsPerSecond)
	}
	if settings.Embedding.CacheAddr != "" {
		cmd.Printf("  cache_addr: %s (ttl %s)\n", settings.Embedding.CacheAddr, settings.Embedding.CacheTTL)
	}
	cmd.Println()

	cmd.Println("[Storage]")
	if settings.Storage.DataDir != "" {
		cmd.Printf("  data_dir:       %s\n", settings.Storage.DataDir)
	}
	cmd.Printf("  vector_backend: %s\n", settings.Storage.VectorBackend)
	if settings.Storage.PostgresDSN != "" {
		cmd.Printf("  postgres_dsn:   %s\n", redactDSN(settings.Storage.PostgresDSN))
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	values, err := parseAssignments(args)
	if err != nil {
		return err
	}

	if err := settingsService.Set(values); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	for _, arg := range args {
		key, _, _ := strings.Cut(arg, "=")
		cmd.Printf("%s %s\n", successStyle.Render("set"), key)
	}
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Validate(); err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return fmt.Errorf("invalid setting %s: %s", cfgErr.Field, cfgErr.Reason)
		}
		return err
	}

	cmd.Println(successStyle.Render("Settings are valid."))
	return nil
}

// parseAssignments parses key=value arguments.
func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		values[key] = strings.TrimSpace(value)
	}
	return values, nil
}

// redactDSN hides the password of a connection URL.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
