package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jimzhouzzy/klotski-server/internal/flagx"
	"github.com/jimzhouzzy/klotski-server/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "720h" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from a zero value.
type JsonConfig struct {
	HTTPAddr            *string         `json:"http_addr"`
	WSAddr              *string         `json:"ws_addr"`
	CredentialsFile     *string         `json:"credentials_file"`
	SaveRoot            *string         `json:"save_root"`
	MaxManualSaves      *int            `json:"max_manual_saves"`
	SessionTTL          *timex.Duration `json:"session_ttl"`
	SecretKey           *string         `json:"secret_key"`
	RealtimeLoginPolicy *string         `json:"realtime_login_policy"`
	SaveValidation      *string         `json:"save_validation"`
	MaxSaveSize         *int            `json:"max_save_size"`
	DiskWorkers         *int            `json:"disk_workers"`
	SendQueueSize       *int            `json:"send_queue_size"`
	WriteTimeout        *timex.Duration `json:"write_timeout"`
	LogLevel            *string         `json:"log_level"`
	S3RootUser          *string         `json:"s3_root_user"`
	S3RootPassword      *string         `json:"s3_root_password"`
	S3Bucket            *string         `json:"s3_bucket"`
	S3Region            *string         `json:"s3_region"`
	S3BaseEndpoint      *string         `json:"s3_base_endpoint"`
}

// parseJson overlays the file named by -c/-config, if any. Keys missing from
// the file keep their current values.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.WSAddr, c.WSAddr)
	setString(&config.CredentialsFile, c.CredentialsFile)
	setString(&config.SaveRoot, c.SaveRoot)
	setInt(&config.MaxManualSaves, c.MaxManualSaves)
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.RealtimeLoginPolicy, c.RealtimeLoginPolicy)
	setString(&config.SaveValidation, c.SaveValidation)
	setInt(&config.MaxSaveSize, c.MaxSaveSize)
	setInt(&config.DiskWorkers, c.DiskWorkers)
	setInt(&config.SendQueueSize, c.SendQueueSize)
	if c.WriteTimeout != nil {
		config.WriteTimeout = c.WriteTimeout.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
