package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings for the klotski CLI.
//
// Fields:
//   - ServerURL: base URL of the game server's HTTP API.
//   - Timeout: per-request timeout.
type Config struct {
	ServerURL string        `env:"KLOTSKI_SERVER_URL"`
	Timeout   time.Duration `env:"KLOTSKI_CLIENT_TIMEOUT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8001"
	c.Timeout = 10 * time.Second
}

// Load constructs a Config, applies defaults, then overlays values from JSON
// (if -c/-config is given), the environment and command-line flags. Later
// sources take precedence over earlier ones.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
