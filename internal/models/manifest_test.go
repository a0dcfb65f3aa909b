package models

import (
	"strings"
	"testing"
)

// TestManifestValidate tests manifest validation rules
func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name     string
		manifest ModuleManifest
		wantErr  string
	}{
		{
			name: "valid manifest",
			manifest: ModuleManifest{
				Name:    "feedwatch",
				Runtime: "feedwatch",
				Jobs: []JobDefinition{
					{Name: "item", Queue: "ingest", TriggeredBy: "feed.item"},
					{Name: "drain", Queue: "ingest", Schedule: "*/5 * * * *"},
				},
			},
		},
		{
			name:     "valid without jobs",
			manifest: ModuleManifest{Name: "static"},
		},
		{
			name:     "missing name",
			manifest: ModuleManifest{Description: "anonymous"},
			wantErr:  "validation failed",
		},
		{
			name: "job without name",
			manifest: ModuleManifest{
				Name: "mod",
				Jobs: []JobDefinition{{Queue: "work"}},
			},
			wantErr: "name is required",
		},
		{
			name: "job without queue",
			manifest: ModuleManifest{
				Name: "mod",
				Jobs: []JobDefinition{{Name: "run"}},
			},
			wantErr: "queue is required",
		},
		{
			name: "duplicate job names",
			manifest: ModuleManifest{
				Name: "mod",
				Jobs: []JobDefinition{
					{Name: "run", Queue: "work"},
					{Name: "run", Queue: "other"},
				},
			},
			wantErr: "duplicate job name",
		},
		{
			name: "invalid cron schedule",
			manifest: ModuleManifest{
				Name: "mod",
				Jobs: []JobDefinition{{Name: "run", Queue: "work", Schedule: "every day"}},
			},
			wantErr: "invalid cron schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid manifest, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error to contain %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

// TestJobDefinitionKinds tests the trigger/schedule classification helpers
func TestJobDefinitionKinds(t *testing.T) {
	triggered := JobDefinition{Name: "a", Queue: "q", TriggeredBy: "subject"}
	scheduled := JobDefinition{Name: "b", Queue: "q", Schedule: "* * * * *"}
	both := JobDefinition{Name: "c", Queue: "q", TriggeredBy: "subject", Schedule: "* * * * *"}
	plain := JobDefinition{Name: "d", Queue: "q"}

	if !triggered.IsTriggered() || triggered.IsScheduled() || triggered.IsDispatchOnly() {
		t.Error("Triggered job misclassified")
	}
	if scheduled.IsTriggered() || !scheduled.IsScheduled() || scheduled.IsDispatchOnly() {
		t.Error("Scheduled job misclassified")
	}
	if !both.IsTriggered() || !both.IsScheduled() || both.IsDispatchOnly() {
		t.Error("Dual job misclassified")
	}
	if plain.IsTriggered() || plain.IsScheduled() || !plain.IsDispatchOnly() {
		t.Error("Dispatch-only job misclassified")
	}
}

// TestManifestHasRuntime tests runtime presence detection
func TestManifestHasRuntime(t *testing.T) {
	with := ModuleManifest{Name: "a", Runtime: "a"}
	without := ModuleManifest{Name: "b"}

	if !with.HasRuntime() {
		t.Error("Expected runtime")
	}
	if without.HasRuntime() {
		t.Error("Did not expect runtime")
	}
}
