package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig describes one remote game server belonging to a tenant.
// Credentials are validated at fetch time, not load time, so a single
// misconfigured server cannot block the rest of the registry.
type ServerConfig struct {
	ID       string `yaml:"id" validate:"required"`
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// LogPath overrides the default {host}_{id}/Logs/Deadside.log layout.
	LogPath string `yaml:"log_path"`
}

// ChannelTable is the per-tenant destination routing table. Three shapes
// are supported for backwards compatibility: per-server entries, a
// tenant-wide default, and the legacy flat table.
type ChannelTable struct {
	// Servers maps server id -> channel type -> destination id.
	Servers map[string]map[string]string `yaml:"servers"`
	// Defaults maps channel type -> destination id for the whole tenant.
	Defaults map[string]string `yaml:"defaults"`
	// Legacy is the old flat channel type -> destination id table.
	Legacy map[string]string `yaml:"channels"`
}

// TenantConfig is one isolated customer boundary: its servers and its
// channel routing. Nothing in here may leak to another tenant.
type TenantConfig struct {
	ID       string         `yaml:"id" validate:"required"`
	Name     string         `yaml:"name"`
	Servers  []ServerConfig `yaml:"servers" validate:"dive"`
	Channels ChannelTable   `yaml:"channels"`
}

// Registry is the full tenant configuration document.
type Registry struct {
	Tenants []TenantConfig `yaml:"tenants" validate:"dive"`
}

// LoadRegistry reads and validates the tenant registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}

	if err := validator.New().Struct(&reg); err != nil {
		return nil, fmt.Errorf("validating registry: %w", err)
	}
	return &reg, nil
}

// Tenant returns the tenant with the given id, if present.
func (r *Registry) Tenant(id string) (TenantConfig, bool) {
	for _, t := range r.Tenants {
		if t.ID == id {
			return t, true
		}
	}
	return TenantConfig{}, false
}
