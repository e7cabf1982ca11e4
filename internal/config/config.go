// Package config reads and writes the repository configuration at
// .strata/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dir is the repository metadata directory, relative to the repository
// root.
const Dir = ".strata"

const fileName = "config.yaml"

// Config is the per-repository configuration.
type Config struct {
	// Store is the object store path, relative to the metadata directory.
	Store string `yaml:"store"`

	// Pipeline is the planfile path, relative to the repository root.
	// Empty means plans are only imported explicitly.
	Pipeline string `yaml:"pipeline,omitempty"`

	// SuccessCodes is the default success code set for imported plans
	// that declare none.
	SuccessCodes []int `yaml:"success_codes,omitempty"`
}

// Default returns the configuration a fresh repository starts with.
func Default() Config {
	return Config{
		Store:        "store.db",
		SuccessCodes: []int{0},
	}
}

// Path returns the config file location for a repository root.
func Path(root string) string {
	return filepath.Join(root, Dir, fileName)
}

// StorePath returns the absolute object store location for a repository
// root.
func (c Config) StorePath(root string) string {
	if filepath.IsAbs(c.Store) {
		return c.Store
	}
	return filepath.Join(root, Dir, c.Store)
}

// Load reads the configuration for a repository root.
func Load(root string) (Config, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", Path(root), err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", Path(root), err)
	}
	if c.Store == "" {
		c.Store = Default().Store
	}
	return c, nil
}

// Save writes the configuration, creating the metadata directory if
// needed.
func Save(root string, c Config) error {
	if err := os.MkdirAll(filepath.Join(root, Dir), 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", Dir, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(Path(root), data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", Path(root), err)
	}
	return nil
}
