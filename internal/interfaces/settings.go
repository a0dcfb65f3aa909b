package interfaces

import (
	"context"
)

// SettingsFetcher returns the settings map for one module.
// Execution contexts carry a fetcher pre-scoped to the invoking module's
// name, so a module cannot read another module's settings through it.
type SettingsFetcher func(ctx context.Context) (map[string]string, error)

// SettingsService manages per-module settings
type SettingsService interface {
	// Fetch returns all settings for the named module
	Fetch(ctx context.Context, module string) (map[string]string, error)

	// Set stores one setting for the named module
	Set(ctx context.Context, module, key, value string) error

	// ForModule returns a fetcher pre-scoped to the named module
	ForModule(module string) SettingsFetcher
}
