package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/jimzhouzzy/klotski-server/internal/flagx"
)

var ownFlags = []string{
	"-a", "-w", "-f", "-d", "-k", "-t", "-s", "-policy", "-validate",
	"-workers", "-l", "-u", "-p", "-b", "-g", "-e",
}

// parseFlags overlays command-line flags.
//
// Supported flags:
//
//	-a string         HTTP API bind address (e.g. ":8001")
//	-w string         websocket bind address (e.g. ":8002")
//	-f string         credentials file
//	-d string         save root directory
//	-k int            manual saves kept per user
//	-t int            session token validity, hours
//	-s string         token signing secret
//	-policy string    realtime login policy: trust, token or password
//	-validate string  save validation: none or strict
//	-workers int      disk worker pool size
//	-l string         log level
//	-u, -p string     S3 user and password
//	-b, -g, -e string S3 bucket, region and base endpoint
//
// Arguments are filtered with flagx.FilterArgs first, so -c/-config and
// anything else aimed at other parsers is ignored here.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP API address")
	fs.StringVar(&config.WSAddr, "w", config.WSAddr, "websocket address")
	fs.StringVar(&config.CredentialsFile, "f", config.CredentialsFile, "credentials file")
	fs.StringVar(&config.SaveRoot, "d", config.SaveRoot, "save root directory")
	fs.IntVar(&config.MaxManualSaves, "k", config.MaxManualSaves, "manual saves kept per user")
	sessionHours := fs.Int("t", int(config.SessionTTL.Hours()), "session token validity (in hours)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	fs.StringVar(&config.RealtimeLoginPolicy, "policy", config.RealtimeLoginPolicy, "realtime login policy")
	fs.StringVar(&config.SaveValidation, "validate", config.SaveValidation, "save validation mode")
	fs.IntVar(&config.DiskWorkers, "workers", config.DiskWorkers, "disk worker pool size")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, ownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.SessionTTL = time.Duration(*sessionHours) * time.Hour
		}
	})

	return nil
}
