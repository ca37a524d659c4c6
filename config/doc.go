// Package config provides configuration loading and validation for the
// guestbook server.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (GUESTBOOK_ prefix), including a .env file
//     in the working directory
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with GUESTBOOK_ prefix:
//   - server.port → GUESTBOOK_SERVER_PORT
//   - database.dsn → GUESTBOOK_DATABASE_DSN
//   - keys.active → GUESTBOOK_KEYS_ACTIVE
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, public_url, max_upload_size and timeouts
//   - Database: type, DSN, table names and auto_migrate
//   - Storage: blob backend (filesystem, s3, minio) and its settings
//   - Upload: upload URL lifetime and cleanup timeout
//   - Keys: signing keys for upload URLs and session cookies
//   - Auth: identity provider (dev, oidc) and session cookie
//   - Guestbook: default guestbook name and page size
//   - Files: ownership enforcement
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
package config
