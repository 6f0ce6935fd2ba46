package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devrev/tenantsync/internal/model"
)

// SeedManifest lists tenants to create on first boot when the settings
// store is still empty. Seeding writes settings only; it never produces
// sync tokens, so a freshly seeded cluster starts quiet.
type SeedManifest struct {
	Tenants []SeedTenant `yaml:"tenants"`
}

// SeedTenant describes one seeded tenant.
type SeedTenant struct {
	Name        string `yaml:"name"`
	State       string `yaml:"state"`
	Description string `yaml:"description"`
}

// LoadSeedManifest reads and validates a seed manifest from path.
func LoadSeedManifest(path string) (*SeedManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed manifest: %w", err)
	}

	var manifest SeedManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse seed manifest: %w", err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed manifest: %w", err)
	}

	return &manifest, nil
}

// Validate checks the manifest for duplicate or malformed entries. Entries
// with no state default to running.
func (m *SeedManifest) Validate() error {
	if len(m.Tenants) == 0 {
		return fmt.Errorf("seed manifest lists no tenants")
	}

	seen := make(map[string]bool, len(m.Tenants))
	for i := range m.Tenants {
		t := &m.Tenants[i]
		if t.State == "" {
			t.State = model.StateRunning
		}
		settings := model.TenantSettings{Name: t.Name, State: t.State}
		if err := settings.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tenant in seed manifest: %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Settings converts the manifest entries to tenant settings.
func (m *SeedManifest) Settings() []*model.TenantSettings {
	out := make([]*model.TenantSettings, 0, len(m.Tenants))
	for _, t := range m.Tenants {
		out = append(out, &model.TenantSettings{
			Name:        t.Name,
			State:       t.State,
			Description: t.Description,
		})
	}
	return out
}
