// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the service reads.
const EnvPrefix = "FUGAZZETA"

// Engine names
const (
	EngineAuto   = "auto"
	EngineNative = "native"
	EngineONNX   = "onnx"
	EngineMock   = "mock"
)

// Config holds all configuration for the service
type Config struct {
	// Server configuration
	Port        int    `mapstructure:"port"`
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	Environment string `mapstructure:"environment"`

	// Model configuration
	Model         string             `mapstructure:"model"`
	Engine        string             `mapstructure:"engine"`
	Labels        []string           `mapstructure:"labels"`
	Architecture  ArchitectureConfig `mapstructure:"architecture"`
	NumTopClasses int                `mapstructure:"num_top_classes"`

	// Demo API configuration
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	CORSOrigins    []string `mapstructure:"cors_origins"`

	// Prediction cache
	Redis    string        `mapstructure:"redis"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// OpenTelemetry configuration
	OTELEnabled  bool   `mapstructure:"otel_enabled"`
	OTELEndpoint string `mapstructure:"otel_endpoint"`

	// Remote artifacts
	S3 S3Config `mapstructure:"s3"`

	// Worker count for batch prediction from the CLI
	Workers int `mapstructure:"workers"`
}

// ArchitectureConfig selects the network the caller builds before loading.
type ArchitectureConfig struct {
	Name     string  `mapstructure:"name"`
	Features int     `mapstructure:"features"`
	Dropout  float32 `mapstructure:"dropout"`
}

// S3Config holds credentials for fetching s3:// model artifacts.
type S3Config struct {
	Region      string `mapstructure:"region"`
	EndpointURL string `mapstructure:"endpoint_url"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	CacheDir    string `mapstructure:"cache_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 50051)
	v.SetDefault("http_port", 7860)
	v.SetDefault("metrics_port", 9100)
	v.SetDefault("environment", "development")
	v.SetDefault("model", "model.pkl")
	v.SetDefault("engine", EngineAuto)
	v.SetDefault("labels", []string{"fugazzeta", "pizza"})
	v.SetDefault("architecture.name", "tinyconv")
	v.SetDefault("architecture.features", 8)
	v.SetDefault("architecture.dropout", 0.5)
	v.SetDefault("num_top_classes", 2)
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("redis", "")
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.cache_dir", "")
	v.SetDefault("workers", 4)
}

func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Also read OTEL standard env vars
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		v.SetDefault("otel_endpoint", endpoint)
		v.SetDefault("otel_enabled", true)
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// flagKeys names flags whose config key is not their underscored name.
var flagKeys = map[string]string{
	"arch":          "architecture.name",
	"arch-features": "architecture.features",
}

// bindFlags maps dashed flag names onto underscored config keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Name == "config" || f.Name == "env-file" {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// LoadEnvFile loads a .env file into the process environment. A missing
// default file is ignored; a missing explicit file is an error.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from flags, environment variables, and optional config file.
// Priority (highest to lowest): flags > env vars > config file > defaults
func Load(flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper(flags)
	if err != nil {
		return nil, err
	}

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/fugazzeta/")
	v.AddConfigPath("$HOME/.fugazzeta")

	// Read config file if present (ignore error if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error occurred
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadWithConfigFile loads configuration from a specific config file
func LoadWithConfigFile(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper(flags)
	if err != nil {
		return nil, err
	}

	// Read specific config file
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for name, port := range map[string]int{"port": c.Port, "http_port": c.HTTPPort, "metrics_port": c.MetricsPort} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s: %d", name, port)
		}
	}
	if c.Port == c.MetricsPort || c.Port == c.HTTPPort || c.HTTPPort == c.MetricsPort {
		return fmt.Errorf("port, http_port and metrics_port must be different")
	}

	switch c.Engine {
	case EngineAuto, EngineNative, EngineONNX, EngineMock:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.Model == "" && c.Engine != EngineMock {
		return fmt.Errorf("model path is required when not using mock inference")
	}

	if len(c.Labels) == 0 {
		return fmt.Errorf("at least one label is required")
	}
	seen := make(map[string]bool, len(c.Labels))
	for _, l := range c.Labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("labels must not be blank")
		}
		if seen[l] {
			return fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
	}

	if c.NumTopClasses <= 0 {
		return fmt.Errorf("num_top_classes must be positive, got %d", c.NumTopClasses)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// ResolvedEngine returns the engine to use, picking one from the model path
// extension when Engine is "auto".
func (c *Config) ResolvedEngine() string {
	if c.Engine != EngineAuto {
		return c.Engine
	}
	if strings.HasSuffix(strings.ToLower(c.Model), ".onnx") {
		return EngineONNX
	}
	return EngineNative
}
