package config

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".mathedit.yml"

// DefaultExcludes are glob patterns skipped by batch reconciliation.
var DefaultExcludes = []string{
	"node_modules/**",
	".git/**",
	"vendor/**",
	"*.min.html",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: ".mathedit",
		Server: ServerConfig{
			Port:               8080,
			AllowedOrigins:     []string{"*"},
			SessionIdleMinutes: 60,
		},
		Math: MathConfig{
			OutputFormat:       "svg",
			UseAlternateEngine: true,
			ImageScale:         1.5,
			RerenderDelayMS:    100,
		},
		Batch: BatchConfig{
			Include:     []string{"**/*.html", "**/*.htm"},
			Exclude:     DefaultExcludes,
			Concurrency: 4,
		},
	}
}
