// Package config loads runtime configuration for the klotski CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. KLOTSKI_SERVER_URL and KLOTSKI_CLIENT_TIMEOUT.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the server
//	-t int      request timeout (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8001",
//	  "timeout": "10s"
//	}
package config
