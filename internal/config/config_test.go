package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Math.OutputFormat != "svg" || !cfg.Math.UseAlternateEngine {
		t.Errorf("default math = %+v", cfg.Math)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
	if cfg.RerenderDelay() != 100*time.Millisecond {
		t.Errorf("RerenderDelay = %v", cfg.RerenderDelay())
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.mathedit.yml")

	original := DefaultConfig()
	original.Math.OutputFormat = "png"
	original.Math.ImageScale = 2
	original.Server.Port = 9090
	original.Batch.Include = []string{"site/**/*.html"}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Math.OutputFormat != "png" || loaded.Math.ImageScale != 2 {
		t.Errorf("math: got %+v", loaded.Math)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("port: got %d", loaded.Server.Port)
	}
	if len(loaded.Batch.Include) != 1 || loaded.Batch.Include[0] != "site/**/*.html" {
		t.Errorf("include: got %v", loaded.Batch.Include)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.DataDir != ".mathedit" {
		t.Errorf("expected defaults, got data_dir %q", cfg.DataDir)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	if err := os.WriteFile(path, []byte("math:\n  output_format: mathlive\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Math.OutputFormat != "mathlive" {
		t.Errorf("output_format = %q", cfg.Math.OutputFormat)
	}
	if cfg.Server.Port != 8080 || cfg.Math.ImageScale != 1.5 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("math: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MATHEDIT_MATH__OUTPUT_FORMAT", "png")
	t.Setenv("MATHEDIT_SERVER__PORT", "7000")
	t.Setenv("MATHEDIT_DATA_DIR", "/tmp/mathedit-data")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Math.OutputFormat != "png" {
		t.Errorf("output_format = %q", cfg.Math.OutputFormat)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.DataDir != "/tmp/mathedit-data" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"mathlive", func(c *Config) { c.Math.OutputFormat = "mathlive" }, false},
		{"unknown format", func(c *Config) { c.Math.OutputFormat = "gif" }, true},
		{"negative scale", func(c *Config) { c.Math.ImageScale = -1 }, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"negative delay", func(c *Config) { c.Math.RerenderDelayMS = -5 }, true},
		{"negative concurrency", func(c *Config) { c.Batch.Concurrency = -1 }, true},
		{"negative session idle", func(c *Config) { c.Server.SessionIdleMinutes = -1 }, true},
		{"bad include glob", func(c *Config) { c.Batch.Include = []string{"[a-"} }, true},
		{"session expiry disabled", func(c *Config) { c.Server.SessionIdleMinutes = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMathSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Math.OutputFormat = "mathlive"
	s, err := cfg.MathSettings()
	if err != nil {
		t.Fatal(err)
	}
	if s.OutputFormat != mathrender.FormatMathLive || !s.LiveWidget() {
		t.Errorf("settings = %+v", s)
	}
}

func TestWizardValidators(t *testing.T) {
	if validateScale("2.5") != nil || validateScale("0") == nil || validateScale("x") == nil {
		t.Error("validateScale")
	}
	if validatePort("8080") != nil || validatePort("70000") == nil || validatePort("") == nil {
		t.Error("validatePort")
	}
}
