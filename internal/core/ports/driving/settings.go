package driving

import "github.com/custodia-labs/verselens-cli/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, then the config file, then environment.
	Get() (*domain.AppSettings, error)

	// Set parses value for the dot-path key and persists it.
	// Unknown keys and unparsable values fail with domain.ErrInvalidInput.
	Set(key, value string) error

	// Value returns the effective value of key formatted for display.
	Value(key string) (string, error)

	// Keys lists the supported keys in display order.
	Keys() []string

	// Validate checks the settings and pings the configured AI providers.
	Validate() error

	// Path returns the config file path.
	Path() string
}
