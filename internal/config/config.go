// Package config loads pipegen settings from a YAML file and PIPEGEN_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ravi-parthasarathy/pipegen/pkg/llm"
)

// EnvPrefix is prepended to every environment override, with "." mapped to
// "_": PIPEGEN_BACKEND_URL sets backend.url.
const EnvPrefix = "PIPEGEN"

// Config is the full application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Compose  ComposeConfig  `mapstructure:"compose" yaml:"compose"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
}

// LoggerConfig controls zap output and optional file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig configures the store service.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	CORSOrigin   string        `mapstructure:"cors_origin" yaml:"cors_origin"`
	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	SeedFile     string        `mapstructure:"seed_file" yaml:"seed_file"`
}

// DatabaseConfig selects the store. An empty URL means in-memory.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

// BackendConfig is how the CLI reaches the store service.
type BackendConfig struct {
	URL         string        `mapstructure:"url" yaml:"url"`
	Token       string        `mapstructure:"token" yaml:"token"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	LookupRate  float64       `mapstructure:"lookup_rate" yaml:"lookup_rate"`
	LookupBurst int           `mapstructure:"lookup_burst" yaml:"lookup_burst"`
}

// ComposeConfig tunes aggregation fan-out.
type ComposeConfig struct {
	LookupTimeout time.Duration `mapstructure:"lookup_timeout" yaml:"lookup_timeout"`
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// LLMConfig enables fragment drafting. An empty Model disables it.
type LLMConfig struct {
	Model string `mapstructure:"model" yaml:"model"`
}

// SetDefaults registers every key with viper so env overrides are seen.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pipegen")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.seed_file", "")

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	// -- Backend --
	v.SetDefault("backend.url", "http://localhost:8080")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.lookup_rate", 0)
	v.SetDefault("backend.lookup_burst", 4)

	// -- Compose --
	v.SetDefault("compose.lookup_timeout", "5s")
	v.SetDefault("compose.concurrency", 0)

	// -- LLM --
	v.SetDefault("llm.model", "")
}

// NewDefaultConfig returns the configuration produced by defaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Bind prepares v to read PIPEGEN_* environment overrides.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads path (if non-empty) over the defaults and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	Bind(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks for sane values and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Logger.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("backend.url must be an http(s) URL, got %q", c.Backend.URL))
		}
	}
	if c.Backend.LookupRate < 0 {
		errs = append(errs, errors.New("backend.lookup_rate must not be negative"))
	}
	if c.Compose.LookupTimeout <= 0 {
		errs = append(errs, errors.New("compose.lookup_timeout must be positive"))
	}
	if c.Compose.Concurrency < 0 {
		errs = append(errs, errors.New("compose.concurrency must not be negative"))
	}
	if c.LLM.Model != "" {
		if _, _, err := llm.ParseModelID(c.LLM.Model); err != nil {
			errs = append(errs, fmt.Errorf("llm.model: %w", err))
		}
	}
	return errors.Join(errs...)
}
