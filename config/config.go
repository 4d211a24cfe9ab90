// Package config provides configuration management for the HeatX server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"heatx.db"` // ":memory:" for an in-memory archive

	BackendURL string        `env:"BACKEND_URL" envDefault:"http://localhost:8000"` // prediction, analysis, ledger
	ChatURL    string        `env:"CHAT_URL"`                                       // defaults to BackendURL
	BackendRPS float64       `env:"BACKEND_RPS" envDefault:"10"`
	Timeout    time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:8080"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SweepSchedule string        `env:"SWEEP_SCHEDULE" envDefault:"@every 5m"`

	ExportDir string `env:"EXPORT_DIR" envDefault:"bills"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

const envPrefix = "HEATX_"

// Load reads configuration from environment variables, after loading a
// .env file when one exists. Every variable is prefixed with HEATX_.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ChatURL == "" {
		cfg.ChatURL = cfg.BackendURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("backend URL is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}
	// The API always allows credentialed CORS requests.
	for _, o := range c.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			return fmt.Errorf("allowed origins must list explicit origins, not %q", o)
		}
	}
	return nil
}
