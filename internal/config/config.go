// Package config loads CLI settings. Precedence is defaults, then the YAML
// file, then TASKING_* environment variables; command line flags are applied
// on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TASKING"

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "tasking.yaml"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Config is the complete CLI configuration.
type Config struct {
	// File is the task declaration file.
	File    string        `yaml:"file"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// File receives Prometheus text format metrics after a run. Empty disables export.
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		File: "Taskfile.yaml",
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Loader builds a Config.
type Loader struct {
	path       string
	envPrefix  string
	getenv     func(string) string
	skipChecks bool
}

// NewLoader returns a loader reading DefaultPath and the process environment.
func NewLoader() *Loader {
	return &Loader{
		path:      DefaultPath,
		envPrefix: EnvPrefix,
		getenv:    os.Getenv,
	}
}

// WithPath sets the configuration file. A missing file yields defaults.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv replaces the environment lookup.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	if getenv != nil {
		l.getenv = getenv
	}
	return l
}

// SkipValidation makes Load return the configuration unchecked, for callers
// that apply further overrides and call Validate themselves.
func (l *Loader) SkipValidation() *Loader {
	l.skipChecks = true
	return l
}

// Load reads, overrides and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config from file: %w", err)
		}
	}

	l.loadFromEnv(cfg)

	if l.skipChecks {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", l.path, err)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) {
	for key, field := range map[string]*string{
		"FILE":         &cfg.File,
		"LOG_LEVEL":    &cfg.Log.Level,
		"LOG_FORMAT":   &cfg.Log.Format,
		"METRICS_FILE": &cfg.Metrics.File,
	} {
		if v := l.getenv(l.envPrefix + "_" + key); v != "" {
			*field = v
		}
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []string

	if c.File == "" {
		errs = append(errs, "file must not be empty")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
