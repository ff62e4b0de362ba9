// Package config loads runtime settings and the tenant registry.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Settings are the process-level knobs, loaded from SFPSLOG_* environment
// variables. Command-line flags may override individual fields.
type Settings struct {
	RegistryPath string        `koanf:"registry_path"`
	StatePath    string        `koanf:"state_path"`
	PollInterval time.Duration `koanf:"poll_interval"`
	LogLevel     string        `koanf:"log_level"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		RegistryPath: "registry.yaml",
		StatePath:    "sfpslog.db",
		PollInterval: 3 * time.Minute,
		LogLevel:     "info",
	}
}

// LoadSettings reads SFPSLOG_* environment variables over the defaults.
func LoadSettings() (Settings, error) {
	settings := DefaultSettings()

	k := koanf.New(".")
	err := k.Load(env.Provider("SFPSLOG_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SFPSLOG_"))
	}), nil)
	if err != nil {
		return settings, fmt.Errorf("loading environment: %w", err)
	}
	if err := k.Unmarshal("", &settings); err != nil {
		return settings, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return settings, nil
}
