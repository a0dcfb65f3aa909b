package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Modules     ModulesConfig   `toml:"modules"`
	Queue       QueueConfig     `toml:"queue"`
	Storage     StorageConfig   `toml:"storage"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Bus         BusConfig       `toml:"bus"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ModulesConfig controls module discovery
type ModulesConfig struct {
	Root        string `toml:"root"`         // Root directory scanned for module manifests
	SettingsDir string `toml:"settings_dir"` // Directory of per-module settings seed files (./settings/*.toml)
}

type QueueConfig struct {
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before it is dropped
	Prefix            string `toml:"prefix"`             // Key prefix for queue entries in Badger
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
}

// BusConfig controls the in-process message bus
type BusConfig struct {
	BufferSize int `toml:"buffer_size"` // Per-subscription channel depth
}

type LoggingConfig struct {
	Level  string   `toml:"level"`
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig returns a Config populated with defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Modules: ModulesConfig{
			Root:        "./modules.d",
			SettingsDir: "./settings",
		},
		Queue: QueueConfig{
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			Prefix:            "colligo",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/colligo",
			},
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		Bus: BusConfig{
			BufferSize: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if root := os.Getenv("COLLIGO_MODULES_ROOT"); root != "" {
		config.Modules.Root = root
	}
	if dir := os.Getenv("COLLIGO_SETTINGS_DIR"); dir != "" {
		config.Modules.SettingsDir = dir
	}

	if visibilityTimeout := os.Getenv("COLLIGO_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("COLLIGO_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}

	if badgerPath := os.Getenv("COLLIGO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("COLLIGO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, modulesRoot string) {
	if modulesRoot != "" {
		config.Modules.Root = modulesRoot
	}
}

// VisibilityTimeoutDuration parses the queue visibility timeout, falling back to 5m
func (q *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(q.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// IsDevelopment returns true when running in a development environment
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
