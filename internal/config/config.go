// Package config loads the optional .cheshbonrc file that supplies CLI
// default flag values. It is read once at startup; the core never touches
// it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cheshbon/internal/report"
)

// Config holds default CLI flag values, each overridable by an explicit
// flag at invocation time.
type Config struct {
	CacheDir     string           `yaml:"cache_dir"`
	DefaultLevel report.DetailLevel `yaml:"default_detail_level"`
	Caps         CapsConfig       `yaml:"caps"`
}

// CapsConfig mirrors report.Caps for YAML overrides; zero fields fall back
// to report.DefaultCaps().
type CapsConfig struct {
	MaxWitnesses            int `yaml:"max_witnesses"`
	MaxRootCausesPerNode    int `yaml:"max_root_causes_per_node"`
	MaxTriggerEventsPerNode int `yaml:"max_trigger_events_per_node"`
	MaxTopRoots             int `yaml:"max_top_roots"`
}

// Default returns the built-in defaults used when no .cheshbonrc is
// present.
func Default() Config {
	return Config{
		CacheDir:     ".cheshbon-cache",
		DefaultLevel: report.Core,
	}
}

// Load reads and parses a .cheshbonrc file at path. A missing file is not
// an error: Default() is returned unchanged so the CLI can always call
// Load and trust the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvedCaps merges CapsConfig overrides onto report.DefaultCaps(),
// leaving any zero-valued field at its default.
func (c Config) ResolvedCaps() report.Caps {
	caps := report.DefaultCaps()
	if c.Caps.MaxWitnesses != 0 {
		caps.MaxWitnesses = c.Caps.MaxWitnesses
	}
	if c.Caps.MaxRootCausesPerNode != 0 {
		caps.MaxRootCausesPerNode = c.Caps.MaxRootCausesPerNode
	}
	if c.Caps.MaxTriggerEventsPerNode != 0 {
		caps.MaxTriggerEventsPerNode = c.Caps.MaxTriggerEventsPerNode
	}
	if c.Caps.MaxTopRoots != 0 {
		caps.MaxTopRoots = c.Caps.MaxTopRoots
	}
	return caps
}
