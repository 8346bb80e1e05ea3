// Package cli provides the citekit command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/core/ports/driving"
	"github.com/custodia-labs/citekit/internal/logger"
)

// version is set by Execute.
var version = "dev"

// Options are the global flags handed to the bootstrap function.
type Options struct {
	// ConfigDir overrides the configuration directory.
	ConfigDir string

	// DataDir overrides the data directory.
	DataDir string

	// Verbose enables debug logging.
	Verbose bool
}

// Services holds the driving ports and helpers used by commands.
type Services struct {
	Search        driving.SearchService
	Ingest        driving.IngestService
	KnowledgeBase driving.KnowledgeBaseService
	Citation      driving.CitationService
	Settings      driving.SettingsService
	Extractors    driven.ExtractorRegistry

	// ApplySearchSettings swaps search settings into the running search service.
	ApplySearchSettings func(domain.SearchSettings) error

	// WatchConfig blocks until ctx ends, calling onChange after the
	// configuration file is reloaded.
	WatchConfig func(ctx context.Context, onChange func() error) error

	// Close releases resources. May be nil.
	Close func() error
}

// BootstrapFunc builds the services for a command invocation.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, error)

var (
	bootstrap BootstrapFunc
	services  *Services
	options   Options

	searchService        driving.SearchService
	ingestService        driving.IngestService
	knowledgeBaseService driving.KnowledgeBaseService
	citationService      driving.CitationService
	settingsService      driving.SettingsService
	extractorRegistry    driven.ExtractorRegistry
)

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "citekit",
	Short: "Citation-anchored chunking and hybrid retrieval",
	Long: `citekit indexes documents into knowledge bases and answers queries with
ranked chunks that carry exact citations back to their source.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupServices,
	PersistentPostRunE: closeServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&options.ConfigDir, "config", "", "configuration directory (default ~/.citekit)")
	rootCmd.PersistentFlags().StringVar(&options.DataDir, "data-dir", "", "data directory (default ~/.citekit/data)")
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false, "enable debug logging")
}

// SetBootstrap sets the function that builds services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices installs already-built services.
func SetServices(s *Services) {
	services = s
	if s == nil {
		s = &Services{}
	}
	searchService = s.Search
	ingestService = s.Ingest
	knowledgeBaseService = s.KnowledgeBase
	citationService = s.Citation
	settingsService = s.Settings
	extractorRegistry = s.Extractors
}

// Execute runs the root command.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(options.Verbose)
	if _, skip := cmd.Annotations[skipBootstrap]; skip {
		return nil
	}
	if services != nil || bootstrap == nil {
		return nil
	}

	s, err := bootstrap(commandContext(cmd), options)
	if err != nil {
		return err
	}
	SetServices(s)
	return nil
}

func closeServices(_ *cobra.Command, _ []string) error {
	if services == nil || services.Close == nil || bootstrap == nil {
		return nil
	}
	err := services.Close()
	SetServices(nil)
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// requireKB returns the --kb flag value.
func requireKB(kb string) error {
	if kb == "" {
		return errors.New("--kb is required")
	}
	return nil
}
