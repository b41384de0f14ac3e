package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jimzhouzzy/klotski-server/internal/flagx"
	"github.com/jimzhouzzy/klotski-server/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Timeout
// accepts "5s" or integer nanoseconds.
type JsonConfig struct {
	ServerURL string          `json:"server_url"`
	Timeout   *timex.Duration `json:"timeout"`
}

// parseJson overlays cfg with the file named by -c/-config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.Timeout != nil {
		cfg.Timeout = jc.Timeout.Duration
	}
	return nil
}
