package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/assetgate"
	assethttp "github.com/sagarc03/assetgate/http"
	"github.com/sagarc03/assetgate/keybackend"
	"github.com/sagarc03/assetgate/localstore"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ASSETGATE"

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

// Config is the root configuration struct for assetgate.
type Config struct {
	Env     string               `mapstructure:"env" validate:"omitempty,oneof=dev development prod production"`
	Server  ServerConfig         `mapstructure:"server"`
	Store   StoreConfig          `mapstructure:"store"`
	Gateway GatewayConfig        `mapstructure:"gateway"`
	CORS    assethttp.CORSConfig `mapstructure:"cors"`
	Metrics MetricsConfig        `mapstructure:"metrics"`
	Tracing TracingConfig        `mapstructure:"tracing"`
	Log     LogConfig            `mapstructure:"log"`
}

// IsProd reports whether Env names a production deployment.
func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
	// PublicURL is the origin clients reach the server at. The local backend
	// signs capability URLs against it.
	PublicURL       string `mapstructure:"public_url" validate:"omitempty,url"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"min=1"`
}

// StoreConfig selects and configures the object store backend.
type StoreConfig struct {
	Backend      string           `mapstructure:"backend" validate:"required,oneof=s3 minio local"`
	Bucket       string           `mapstructure:"bucket" validate:"required"`
	Region       string           `mapstructure:"region"`
	Endpoint     string           `mapstructure:"endpoint" validate:"required_if=Backend minio"`
	AccessKey    string           `mapstructure:"access_key" validate:"required_with=SecretKey"`
	SecretKey    string           `mapstructure:"secret_key" validate:"required_with=AccessKey"`
	UsePathStyle bool             `mapstructure:"use_path_style"`
	UseSSL       bool             `mapstructure:"use_ssl"`
	CreateBucket bool             `mapstructure:"create_bucket"`
	Local        LocalStoreConfig `mapstructure:"local"`
}

// LocalStoreConfig configures the local development backend.
type LocalStoreConfig struct {
	Path  string `mapstructure:"path" validate:"required"`
	DSN   string `mapstructure:"dsn"` // postgres:// URL or SQLite path
	Table string `mapstructure:"table" validate:"required"`
	// PreviousKeys still verify capability URLs after the signing key changes.
	PreviousKeys keybackend.KeysConfig `mapstructure:"previous_keys"`
}

// GatewayConfig holds the download timeout policy.
type GatewayConfig struct {
	DefaultDownloadTimeout int `mapstructure:"default_download_timeout" validate:"min=1,ltefield=MaxDownloadTimeout"`
	MaxDownloadTimeout     int `mapstructure:"max_download_timeout" validate:"min=1,max=604800"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path" validate:"omitempty,startswith=/"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint    string  `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
	ServiceName string  `mapstructure:"service_name"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":       "server.port",
	"public-url": "server.public_url",
	"backend":    "store.backend",
	"bucket":     "store.bucket",
	"region":     "store.region",
	"endpoint":   "store.endpoint",
	"data-path":  "store.local.path",
	"log-level":  "log.level",
}

// legacyEnv lists variables accepted alongside the ASSETGATE_ ones, so
// deployments configured with plain AWS variable names keep working.
var legacyEnv = map[string][]string{
	"store.bucket":     {"AWS_S3_BUCKET_NAME"},
	"store.region":     {"AWS_S3_REGION"},
	"store.access_key": {"AWS_ACCESS_KEY_ID"},
	"store.secret_key": {"AWS_SECRET_ACCESS_KEY"},
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

// bindEnv registers the prefixed variable for each key with a legacy alias.
// The prefixed name wins when both are set.
func bindEnv(v *viper.Viper) {
	replacer := strings.NewReplacer(".", "_")
	for key, aliases := range legacyEnv {
		names := append([]string{key, EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))}, aliases...)
		_ = v.BindEnv(names...)
	}
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.shutdown_timeout", 30) // seconds

	v.SetDefault("store.backend", "local")
	v.SetDefault("store.bucket", "assets")
	v.SetDefault("store.region", "us-east-1")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.access_key", "")
	v.SetDefault("store.secret_key", "")
	v.SetDefault("store.use_path_style", false)
	v.SetDefault("store.use_ssl", false)
	v.SetDefault("store.create_bucket", false)
	v.SetDefault("store.local.path", "./data")
	v.SetDefault("store.local.dsn", "")
	v.SetDefault("store.local.table", localstore.DefaultTagTable)
	v.SetDefault("store.local.previous_keys.file", "")

	v.SetDefault("gateway.default_download_timeout", assetgate.DefaultDownloadTimeout)
	v.SetDefault("gateway.max_download_timeout", assetgate.MaxDownloadTimeout)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{"ETag"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "assetgate")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "assetgate")

	v.SetDefault("log.level", "")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
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
	bindEnv(v)

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
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Store.Backend == "local" && cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	return &cfg, nil
}
