package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadYAML loads configuration from a YAML file into target.
func loadYAML(path string, target interface{}) error {
	// #nosec G304 -- path is provided by the caller; validate untrusted inputs upstream.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return nil
}

// SaveYAML writes cfg to a YAML file. Useful for generating a starter config.
func SaveYAML(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}

	return nil
}
