package modules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// ManifestFileName is the manifest file expected in each module directory
const ManifestFileName = "module.toml"

// ReadManifest loads and validates the manifest of one module directory.
// Returns models.ErrManifestMissing when the directory has no manifest
// file.
func ReadManifest(dir string) (*models.ModuleManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", models.ErrManifestMissing, dir)
		}
		return nil, fmt.Errorf("failed to read module manifest: %w", err)
	}

	var manifest models.ModuleManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse module manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	manifest.Dir = dir
	return &manifest, nil
}

// DiscoverManifests scans a root directory for module manifests.
//
// Each immediate subdirectory is one candidate module; its manifest is
// read from <dir>/module.toml. A missing, unreadable, or invalid
// manifest excludes that candidate with a warning and discovery
// continues with the rest. Duplicate module names are rejected loudly,
// keeping the first occurrence. The result is sorted lexicographically
// by module name so startup logs and subscription creation order are
// deterministic.
//
// Discovery fails only when the root directory itself cannot be read.
func DiscoverManifests(root string, logger arbor.ILogger) ([]models.ModuleManifest, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read modules root %s: %w", root, err)
	}

	manifests := make([]models.ModuleManifest, 0, len(entries))
	seen := make(map[string]string, len(entries)) // name -> directory

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())

		manifest, err := ReadManifest(dir)
		if err != nil {
			if errors.Is(err, models.ErrManifestMissing) {
				logger.Debug().Str("dir", entry.Name()).Msg("No module manifest, skipping directory")
			} else {
				logger.Warn().Err(err).Str("dir", entry.Name()).Msg("Invalid module manifest, skipping")
			}
			continue
		}

		if prevDir, dup := seen[manifest.Name]; dup {
			logger.Warn().
				Str("module", manifest.Name).
				Str("dir", entry.Name()).
				Str("first_seen", prevDir).
				Msg("Duplicate module name, skipping manifest")
			continue
		}
		seen[manifest.Name] = entry.Name()

		manifests = append(manifests, *manifest)

		logger.Debug().
			Str("module", manifest.Name).
			Int("jobs", len(manifest.Jobs)).
			Bool("has_runtime", manifest.HasRuntime()).
			Msg("Module manifest discovered")
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].Name < manifests[j].Name
	})

	logger.Info().
		Str("root", root).
		Int("count", len(manifests)).
		Msg("Module discovery complete")

	return manifests, nil
}
