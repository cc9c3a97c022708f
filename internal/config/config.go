// Package config holds the runtime configuration shared by the rerender
// commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the simulator and the debug server.
type Config struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	// MaxReflushLoops bounds the forced batching re-entries before a
	// renderer that never settles is destroyed.
	MaxReflushLoops int `yaml:"max_reflush_loops"`
	// DetectBacktracking makes renderers rerender a root whose own render
	// wrote state.
	DetectBacktracking bool `yaml:"detect_backtracking"`
	// MaxBacktracks bounds the consecutive reflushes of one root when
	// backtracking detection is on.
	MaxBacktracks int           `yaml:"max_backtracks"`
	TickInterval  time.Duration `yaml:"tick_interval"`

	JournalPath string `yaml:"journal_path"` // SQLite path, "" disables, ":memory:" for testing
	Addr        string `yaml:"addr"`         // debug server listen address
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "text",
		MaxReflushLoops: 10,
		MaxBacktracks:   10,
		TickInterval:    16 * time.Millisecond,
		Addr:            ":8090",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.MaxReflushLoops < 0 {
		errs = append(errs, fmt.Errorf("max_reflush_loops must not be negative, got %d", c.MaxReflushLoops))
	}
	if c.MaxBacktracks < 0 {
		errs = append(errs, fmt.Errorf("max_backtracks must not be negative, got %d", c.MaxBacktracks))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval))
	}
	return errors.Join(errs...)
}
