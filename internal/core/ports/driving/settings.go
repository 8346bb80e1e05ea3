package driving

import "github.com/custodia-labs/citekit/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves the current settings from the config file and the
	// environment and validates them.
	Get() (*domain.AppSettings, error)

	// Save validates and persists application settings.
	Save(settings *domain.AppSettings) error

	// Set validates and persists dotted keys, e.g. "search.top_k", as one
	// change.
	Set(values map[string]string) error

	// Validate checks the current settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
