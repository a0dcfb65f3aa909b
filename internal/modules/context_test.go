package modules

import (
	"context"
	"testing"

	"github.com/ternarybob/colligo/internal/interfaces"
)

// TestContextFactoryMake tests per-module context construction
func TestContextFactoryMake(t *testing.T) {
	settingsByModule := map[string]map[string]string{
		"alpha": {"key": "alpha-value"},
		"beta":  {"key": "beta-value"},
	}

	factory := NewContextFactory(Collaborators{
		Settings: func(module string) interfaces.SettingsFetcher {
			return func(ctx context.Context) (map[string]string, error) {
				return settingsByModule[module], nil
			}
		},
	})

	alpha := factory.Make("alpha")
	beta := factory.Make("beta")

	if alpha.ModuleName != "alpha" {
		t.Errorf("Expected module name alpha, got %q", alpha.ModuleName)
	}
	if beta.ModuleName != "beta" {
		t.Errorf("Expected module name beta, got %q", beta.ModuleName)
	}

	ctx := context.Background()
	alphaSettings, err := alpha.FetchSettings(ctx)
	if err != nil {
		t.Fatalf("FetchSettings failed: %v", err)
	}
	if alphaSettings["key"] != "alpha-value" {
		t.Errorf("Expected alpha-value, got %q", alphaSettings["key"])
	}

	betaSettings, err := beta.FetchSettings(ctx)
	if err != nil {
		t.Fatalf("FetchSettings failed: %v", err)
	}
	if betaSettings["key"] != "beta-value" {
		t.Errorf("Expected beta-value, got %q", betaSettings["key"])
	}
}

// TestContextFactoryFreshAllocation tests that every Make returns a new context
func TestContextFactoryFreshAllocation(t *testing.T) {
	factory := NewContextFactory(Collaborators{})

	first := factory.Make("mod")
	second := factory.Make("mod")

	if first == second {
		t.Error("Expected distinct context instances for repeated Make calls")
	}
	if first.ModuleName != second.ModuleName {
		t.Error("Expected equivalent contexts for the same module")
	}
}

// TestContextFactoryNilSettings tests that a missing settings collaborator
// leaves the fetcher nil rather than panicking
func TestContextFactoryNilSettings(t *testing.T) {
	factory := NewContextFactory(Collaborators{})

	ec := factory.Make("mod")
	if ec.FetchSettings != nil {
		t.Error("Expected nil settings fetcher without a settings collaborator")
	}
}
