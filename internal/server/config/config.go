// Package config handles configuration for the game server: defaults, an
// optional JSON file, KLOTSKI_* environment variables and command-line flags,
// applied in that order.
package config

import (
	"fmt"
	"os"
	"time"
)

// Realtime login policies. See Config.RealtimeLoginPolicy.
const (
	LoginPolicyTrust    = "trust"
	LoginPolicyToken    = "token"
	LoginPolicyPassword = "password"
)

// Save validation modes. See Config.SaveValidation.
const (
	SaveValidationNone   = "none"
	SaveValidationStrict = "strict"
)

// Config holds runtime settings for the game server.
//
// Fields:
//   - HTTPAddr: bind address of the login/signup/save API.
//   - WSAddr: bind address of the realtime websocket endpoint.
//   - CredentialsFile: JSON file mapping username to password hash.
//   - SaveRoot: directory holding one sub-directory of saves per user.
//   - MaxManualSaves: retention cap K for manual saves.
//   - SessionTTL: lifetime of tokens issued on password login.
//   - SecretKey: HMAC secret signing session tokens. Do not use the default in prod.
//   - RealtimeLoginPolicy: what a websocket "login:" message must prove
//     (trust, token or password).
//   - SaveValidation / MaxSaveSize: upload validation mode and payload bound.
//   - DiskWorkers: size of the disk I/O pool.
//   - SendQueueSize / WriteTimeout: per-connection outbound buffering.
//   - S3*: optional mirror of save files; empty S3Bucket disables it.
type Config struct {
	HTTPAddr            string        `env:"KLOTSKI_HTTP_ADDR"`
	WSAddr              string        `env:"KLOTSKI_WS_ADDR"`
	CredentialsFile     string        `env:"KLOTSKI_CREDENTIALS_FILE"`
	SaveRoot            string        `env:"KLOTSKI_SAVE_ROOT"`
	MaxManualSaves      int           `env:"KLOTSKI_MAX_MANUAL_SAVES"`
	SessionTTL          time.Duration `env:"KLOTSKI_SESSION_TTL"`
	SecretKey           string        `env:"KLOTSKI_SECRET_KEY"`
	RealtimeLoginPolicy string        `env:"KLOTSKI_REALTIME_LOGIN_POLICY"`
	SaveValidation      string        `env:"KLOTSKI_SAVE_VALIDATION"`
	MaxSaveSize         int           `env:"KLOTSKI_MAX_SAVE_SIZE"`
	DiskWorkers         int           `env:"KLOTSKI_DISK_WORKERS"`
	SendQueueSize       int           `env:"KLOTSKI_SEND_QUEUE_SIZE"`
	WriteTimeout        time.Duration `env:"KLOTSKI_WRITE_TIMEOUT"`
	LogLevel            string        `env:"KLOTSKI_LOG_LEVEL"`
	S3RootUser          string        `env:"KLOTSKI_S3_ROOT_USER"`
	S3RootPassword      string        `env:"KLOTSKI_S3_ROOT_PASSWORD"`
	S3Bucket            string        `env:"KLOTSKI_S3_BUCKET"`
	S3Region            string        `env:"KLOTSKI_S3_REGION"`
	S3BaseEndpoint      string        `env:"KLOTSKI_S3_BASE_ENDPOINT"`
}

// LoadDefaults populates Config with development defaults: ports 8001/8002,
// three manual saves, 30-day tokens.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8001"
	c.WSAddr = ":8002"
	c.CredentialsFile = "userDatabase.json"
	c.SaveRoot = "gameSaves"
	c.MaxManualSaves = 3
	c.SessionTTL = 30 * 24 * time.Hour
	c.SecretKey = "secretKey"
	c.RealtimeLoginPolicy = LoginPolicyTrust
	c.SaveValidation = SaveValidationNone
	c.MaxSaveSize = 1 << 20
	c.DiskWorkers = 4
	c.SendQueueSize = 64
	c.WriteTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.RealtimeLoginPolicy {
	case LoginPolicyTrust, LoginPolicyToken, LoginPolicyPassword:
	default:
		return fmt.Errorf("unknown realtime login policy %q", c.RealtimeLoginPolicy)
	}
	switch c.SaveValidation {
	case SaveValidationNone, SaveValidationStrict:
	default:
		return fmt.Errorf("unknown save validation mode %q", c.SaveValidation)
	}
	if c.MaxManualSaves < 1 {
		return fmt.Errorf("max manual saves must be positive, got %d", c.MaxManualSaves)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret key must not be empty")
	}
	return nil
}

// Load builds a Config from args (without the program name) and the process
// environment.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadConfig is Load over os.Args.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
