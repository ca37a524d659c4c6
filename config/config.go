package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/guestbook/blobstore"
	"github.com/sagarc03/guestbook/database"
	gbhttp "github.com/sagarc03/guestbook/http"
	"github.com/sagarc03/guestbook/identity"
	"github.com/sagarc03/guestbook/keybackend"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GUESTBOOK"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for guestbook.
type Config struct {
	Env       string                `mapstructure:"env"`
	Server    ServerConfig          `mapstructure:"server"`
	Database  DatabaseConfig        `mapstructure:"database"`
	Storage   blobstore.Config      `mapstructure:"storage"`
	Upload    UploadConfig          `mapstructure:"upload"`
	Keys      keybackend.KeysConfig `mapstructure:"keys"`
	Auth      identity.Config       `mapstructure:"auth"`
	Guestbook GuestbookConfig       `mapstructure:"guestbook"`
	Files     FilesConfig           `mapstructure:"files"`
	CORS      gbhttp.CORSConfig     `mapstructure:"cors"`
	Log       LogConfig             `mapstructure:"log"`
}

// IsProd reports whether env names a production deployment.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
	// PublicURL is prefixed to upload URLs. Empty gives relative URLs.
	PublicURL     string        `mapstructure:"public_url" validate:"omitempty,url"`
	MaxUploadSize int64         `mapstructure:"max_upload_size" validate:"min=0"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the record store connection.
type DatabaseConfig struct {
	database.Config `mapstructure:",squash"`
	AutoMigrate     bool `mapstructure:"auto_migrate"`
}

// UploadConfig holds upload URL settings.
type UploadConfig struct {
	// Expires is the lifetime of an upload URL in seconds.
	Expires int `mapstructure:"expires" validate:"min=1,max=604800"`
	// CleanupTimeout bounds blob cleanup after a failed write, in seconds.
	CleanupTimeout int `mapstructure:"cleanup_timeout" validate:"min=1"`
}

// GuestbookConfig holds guestbook page settings.
type GuestbookConfig struct {
	DefaultName string `mapstructure:"default_name" validate:"required"`
	PageSize    int    `mapstructure:"page_size" validate:"min=1,max=1000"`
}

// FilesConfig holds file access settings.
type FilesConfig struct {
	// EnforceOwnership limits view, download and delete to the owner.
	EnforceOwnership bool `mapstructure:"enforce_ownership"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":         "database.type",
	"db-dsn":          "database.dsn",
	"storage-backend": "storage.backend",
	"storage-path":    "storage.path",
	"port":            "server.port",
	"public-url":      "server.public_url",
	"auth-provider":   "auth.provider",
	"log-level":       "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.max_upload_size", gbhttp.DefaultMaxUploadSize)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "guestbook.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.tables.greetings", "greetings")
	v.SetDefault("database.tables.files", "files")
	v.SetDefault("database.tables.blob_infos", "blob_infos")
	v.SetDefault("database.tables.upload_sessions", "upload_sessions")

	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "")
	v.SetDefault("storage.minio.use_ssl", true)

	v.SetDefault("upload.expires", 600)
	v.SetDefault("upload.cleanup_timeout", 30)

	// Keys without a default are invisible to AutomaticEnv.
	v.SetDefault("keys.active", "")
	v.SetDefault("keys.file", "")

	v.SetDefault("auth.provider", "dev")
	v.SetDefault("auth.cookie_name", identity.DefaultCookieName)
	v.SetDefault("auth.session_ttl", identity.DefaultSessionTTL)
	v.SetDefault("auth.secure_cookie", false)
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.client_id", "")
	v.SetDefault("auth.oidc.client_secret", "")
	v.SetDefault("auth.oidc.redirect_url", "")

	v.SetDefault("guestbook.default_name", "default_name")
	v.SetDefault("guestbook.page_size", 10)

	v.SetDefault("files.enforce_ownership", false)

	v.SetDefault("cors.enabled", false)

	v.SetDefault("log.level", "")
}

// loadDotEnv reads .env from the working directory into the process
// environment. Variables already set win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		slog.Warn("error reading .env file", "err", err)
	}
}

var validate = validator.New()

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	loadDotEnv()

	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.validateSections(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// validateSections checks the sections whose structs live in other packages
// and carry no validate tags.
func (c *Config) validateSections() error {
	if err := validate.Var(c.Database.Type, "required,oneof=sqlite postgres"); err != nil {
		return fmt.Errorf("database.type: %w", err)
	}
	if err := validate.Var(c.Database.DSN, "required"); err != nil {
		return fmt.Errorf("database.dsn: %w", err)
	}
	if err := c.Database.Tables.Validate(); err != nil {
		return fmt.Errorf("database.tables: %w", err)
	}

	switch c.Storage.Backend {
	case "filesystem":
		if c.Storage.Path == "" {
			return errors.New("storage.path: required for the filesystem backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket: required for the s3 backend")
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return errors.New("storage.minio: endpoint and bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported backend %q", c.Storage.Backend)
	}

	switch c.Auth.Provider {
	case "dev":
	case "oidc":
		if err := validate.Var(c.Auth.OIDC.Issuer, "required,url"); err != nil {
			return fmt.Errorf("auth.oidc.issuer: %w", err)
		}
		if c.Auth.OIDC.ClientID == "" {
			return errors.New("auth.oidc.client_id: required for the oidc provider")
		}
		if err := validate.Var(c.Auth.OIDC.RedirectURL, "required,url"); err != nil {
			return fmt.Errorf("auth.oidc.redirect_url: %w", err)
		}
	default:
		return fmt.Errorf("auth.provider: unsupported provider %q", c.Auth.Provider)
	}

	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.session_ttl: must be positive")
	}

	return nil
}
