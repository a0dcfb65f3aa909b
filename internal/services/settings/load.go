package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// SettingFile represents one setting entry in a seed TOML file.
// Format (one file per module, filename is the module name):
//
//	[api_key]
//	value = "some-value"
//	description = "optional description"
type SettingFile struct {
	Value       string `toml:"value"`
	Description string `toml:"description"`
}

// LoadFromFiles seeds module settings from TOML files in a directory.
// Each <module>.toml file holds the settings for the module of that name.
// Unreadable or unparseable files are skipped; loading continues.
func (s *Service) LoadFromFiles(ctx context.Context, dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		s.logger.Debug().Str("dir", dirPath).Msg("Settings directory does not exist, skipping")
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", dirPath).Msg("Failed to read settings directory")
		return err
	}

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}

		module := strings.TrimSuffix(entry.Name(), ".toml")
		filePath := filepath.Join(dirPath, entry.Name())

		content, err := os.ReadFile(filePath)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read settings file")
			continue
		}

		var settings map[string]SettingFile
		if err := toml.Unmarshal(content, &settings); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse settings file")
			continue
		}

		for key, setting := range settings {
			if setting.Value == "" {
				s.logger.Warn().Str("file", entry.Name()).Str("key", key).Msg("Skipping setting with empty value")
				continue
			}
			if err := s.Set(ctx, module, key, setting.Value); err != nil {
				s.logger.Error().Err(err).Str("module", module).Str("key", key).Msg("Failed to store setting")
				continue
			}
			loadedCount++
		}
	}

	if loadedCount > 0 {
		s.logger.Info().Int("count", loadedCount).Str("dir", dirPath).Msg("Settings loaded from files")
	} else {
		s.logger.Debug().Str("dir", dirPath).Msg("No settings loaded from files")
	}

	return nil
}
