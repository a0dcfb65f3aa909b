package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// keyPrefix namespaces module settings in KV storage.
// Key format: module:<module-name>:<setting-key>
const keyPrefix = "module:"

// Service provides per-module settings over key/value storage
type Service struct {
	storage interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewService creates a new settings service
func NewService(storage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

func moduleKey(module, key string) string {
	return keyPrefix + strings.ToLower(module) + ":" + key
}

// Fetch returns all settings for the named module
func (s *Service) Fetch(ctx context.Context, module string) (map[string]string, error) {
	if module == "" {
		return nil, fmt.Errorf("module name is required")
	}

	prefix := keyPrefix + strings.ToLower(module) + ":"
	pairs, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch settings for module %s: %w", module, err)
	}

	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		result[strings.TrimPrefix(pair.Key, prefix)] = pair.Value
	}

	return result, nil
}

// Set stores one setting for the named module
func (s *Service) Set(ctx context.Context, module, key, value string) error {
	if module == "" {
		return fmt.Errorf("module name is required")
	}
	if key == "" {
		return fmt.Errorf("setting key is required")
	}

	if err := s.storage.Set(ctx, moduleKey(module, key), value, "setting for module "+module); err != nil {
		return fmt.Errorf("failed to set setting %s for module %s: %w", key, module, err)
	}

	s.logger.Debug().Str("module", module).Str("key", key).Msg("Setting stored")
	return nil
}

// ForModule returns a fetcher pre-scoped to the named module.
// The returned fetcher cannot reach another module's settings.
func (s *Service) ForModule(module string) interfaces.SettingsFetcher {
	return func(ctx context.Context) (map[string]string, error) {
		return s.Fetch(ctx, module)
	}
}
