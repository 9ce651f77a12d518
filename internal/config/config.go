package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/mathedit/internal/mathrender"
	"github.com/ziadkadry99/mathedit/internal/walker"
)

// EnvPrefix starts every environment override. Nested keys are joined with
// a double underscore: MATHEDIT_MATH__OUTPUT_FORMAT -> math.output_format.
const EnvPrefix = "MATHEDIT_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (MATHEDIT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.SessionIdleMinutes < 0 {
		return fmt.Errorf("server.session_idle_minutes must be non-negative")
	}
	if _, err := c.MathSettings(); err != nil {
		return err
	}
	if c.Math.RerenderDelayMS < 0 {
		return fmt.Errorf("math.rerender_delay_ms must be non-negative")
	}
	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("batch.concurrency must be non-negative")
	}
	if err := walker.ValidatePatterns(c.Batch.Include); err != nil {
		return fmt.Errorf("batch.include: %w", err)
	}
	if err := walker.ValidatePatterns(c.Batch.Exclude); err != nil {
		return fmt.Errorf("batch.exclude: %w", err)
	}
	return nil
}

// MathSettings converts the math section into render settings.
func (c *Config) MathSettings() (mathrender.Settings, error) {
	format, err := mathrender.ParseFormat(c.Math.OutputFormat)
	if err != nil {
		return mathrender.Settings{}, fmt.Errorf("math.output_format: %w", err)
	}
	s := mathrender.Settings{
		OutputFormat:       format,
		UseAlternateEngine: c.Math.UseAlternateEngine,
		ImageScale:         c.Math.ImageScale,
	}
	if err := s.Validate(); err != nil {
		return mathrender.Settings{}, fmt.Errorf("math: %w", err)
	}
	return s, nil
}

// RerenderDelay returns the live re-render debounce.
func (c *Config) RerenderDelay() time.Duration {
	return time.Duration(c.Math.RerenderDelayMS) * time.Millisecond
}

// SessionIdle returns how long an unused editing session is kept.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.Server.SessionIdleMinutes) * time.Minute
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "mathedit.db")
}
