package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// manifestValidator validates manifest structs decoded from module.toml
var manifestValidator = validator.New()

// JobDefinition represents one declared unit of work within a module manifest.
// A job may be cron-scheduled, bus-triggered, both, or neither (dispatch-only).
type JobDefinition struct {
	Name        string `toml:"name" json:"name" validate:"required"`
	Queue       string `toml:"queue" json:"queue" validate:"required"`
	Schedule    string `toml:"schedule" json:"schedule,omitempty"`         // Cron expression, interpreted by the scheduler service
	TriggeredBy string `toml:"triggered_by" json:"triggered_by,omitempty"` // Bus subject; presence opens one subscription
}

// IsTriggered reports whether this job listens on a bus subject
func (j *JobDefinition) IsTriggered() bool {
	return j.TriggeredBy != ""
}

// IsScheduled reports whether this job runs on a cron schedule
func (j *JobDefinition) IsScheduled() bool {
	return j.Schedule != ""
}

// IsDispatchOnly reports whether this job is reachable solely via direct dispatch
func (j *JobDefinition) IsDispatchOnly() bool {
	return !j.IsTriggered() && !j.IsScheduled()
}

// ModuleManifest is the static per-module descriptor read once at startup
// from <root>/<dir>/module.toml.
type ModuleManifest struct {
	Name        string          `toml:"name" json:"name" validate:"required"`
	Description string          `toml:"description" json:"description,omitempty"`
	Runtime     string          `toml:"runtime" json:"runtime,omitempty"` // Factory name; modules without one never participate in dispatch
	Jobs        []JobDefinition `toml:"jobs" json:"jobs"`

	// Dir is the manifest's own directory, recorded during discovery.
	// Not part of the manifest document.
	Dir string `toml:"-" json:"-"`
}

// HasRuntime reports whether the manifest names a runtime factory
func (m *ModuleManifest) HasRuntime() bool {
	return m.Runtime != ""
}

// Validate validates the manifest and its job definitions
func (m *ModuleManifest) Validate() error {
	if err := manifestValidator.Struct(m); err != nil {
		return fmt.Errorf("manifest validation failed: %w", err)
	}

	seen := make(map[string]struct{}, len(m.Jobs))
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	for i, job := range m.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job %d: name is required", i)
		}
		if job.Queue == "" {
			return fmt.Errorf("job %q: queue is required", job.Name)
		}
		if _, dup := seen[job.Name]; dup {
			return fmt.Errorf("job %q: duplicate job name within module", job.Name)
		}
		seen[job.Name] = struct{}{}

		if job.Schedule != "" {
			if _, err := parser.Parse(job.Schedule); err != nil {
				return fmt.Errorf("job %q: invalid cron schedule %q: %w", job.Name, job.Schedule, err)
			}
		}
	}

	return nil
}

// ErrManifestMissing is returned when a module directory has no manifest file
var ErrManifestMissing = errors.New("module manifest not found")
