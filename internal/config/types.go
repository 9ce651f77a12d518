package config

// Config is the top-level mathedit configuration, corresponding to .mathedit.yml.
type Config struct {
	DataDir string       `yaml:"data_dir" koanf:"data_dir"`
	Server  ServerConfig `yaml:"server" koanf:"server"`
	Math    MathConfig   `yaml:"math" koanf:"math"`
	Batch   BatchConfig  `yaml:"batch" koanf:"batch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               int      `yaml:"port" koanf:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	SessionIdleMinutes int      `yaml:"session_idle_minutes" koanf:"session_idle_minutes"` // 0 keeps sessions until DELETE
}

// MathConfig holds the startup render settings.
type MathConfig struct {
	OutputFormat       string  `yaml:"output_format" koanf:"output_format"`
	UseAlternateEngine bool    `yaml:"use_alternate_engine" koanf:"use_alternate_engine"`
	ImageScale         float64 `yaml:"image_scale" koanf:"image_scale"`
	RerenderDelayMS    int     `yaml:"rerender_delay_ms" koanf:"rerender_delay_ms"`
}

// BatchConfig selects files for batch reconciliation.
type BatchConfig struct {
	Include     []string `yaml:"include" koanf:"include"`
	Exclude     []string `yaml:"exclude" koanf:"exclude"`
	Concurrency int      `yaml:"concurrency" koanf:"concurrency"`
}
