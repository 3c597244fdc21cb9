// Package config holds the engine's optional YAML configuration.
//
// Zero configuration means built-in defaults: the standard required-field
// set for both workflows, the built-in volatile-suffix list, and a soak
// iteration cap of 256.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/detrace/internal/normalize"
	"github.com/roach88/detrace/internal/validate"
)

// DefaultMaxIterations bounds soak runs that give no explicit cap.
const DefaultMaxIterations = 256

// Config is the decoded configuration file. All fields are optional.
type Config struct {
	// RequiredFields overrides the required-field list per workflow.
	RequiredFields map[string][]string `yaml:"required_fields"`

	// VolatileSuffixes replaces the built-in volatile-suffix list.
	VolatileSuffixes []string `yaml:"volatile_suffixes"`

	// MaxIterations caps soak iteration counts. Zero means the default;
	// there is no way to configure a cap of zero.
	MaxIterations int `yaml:"max_iterations"`

	// LogLevel sets soak progress logging: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{MaxIterations: DefaultMaxIterations}
}

// Load reads and strictly decodes a YAML config file. Unknown keys are
// errors: a typo in a field name must not silently fall back to defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.MaxIterations < 0 {
		return Config{}, fmt.Errorf("config %s: max_iterations must not be negative", path)
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return cfg, nil
}

// RequiredFieldsFor returns the required-field list for a workflow,
// falling back to the built-in default.
func (c Config) RequiredFieldsFor(workflow string) []string {
	if fields, ok := c.RequiredFields[workflow]; ok {
		return fields
	}
	return validate.DefaultRequiredFields
}

// Suffixes returns the volatile-suffix list in effect.
func (c Config) Suffixes() []string {
	if c.VolatileSuffixes != nil {
		return c.VolatileSuffixes
	}
	return normalize.DefaultVolatileSuffixes
}
