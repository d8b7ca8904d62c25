// Package config loads the settings of the function host adapter from defaults, an optional
// YAML file and FC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatText = "text"
	LogFormatJSON = "json"
	LogFormatDev  = "dev"
)

const (
	DefaultHTTPAddress     = "0.0.0.0:9000"
	DefaultGRPCAddress     = "0.0.0.0:50052"
	DefaultShutdownTimeout = 10 * time.Second
)

type ServerConfig struct {
	// HTTPAddress serves the custom runtime endpoints /initialize and /invoke.
	HTTPAddress string `mapstructure:"http_address"`
	// GRPCAddress serves the gRPC function service. Empty disables it.
	GRPCAddress string `mapstructure:"grpc_address"`
	// IdleTimeout stops the servers after this long without any call. Zero disables it.
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// Load reads the configuration. path may be empty, in which case only defaults and the
// environment are used. FC_SERVER_PORT overrides the port of the HTTP address.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.http_address", DefaultHTTPAddress)
	v.SetDefault("server.grpc_address", DefaultGRPCAddress)
	v.SetDefault("server.idle_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("log.level", LogLevelInfo)
	v.SetDefault("log.format", LogFormatText)
	v.SetDefault("log.file", "")

	v.SetEnvPrefix("FC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if port := os.Getenv("FC_SERVER_PORT"); port != "" {
		host, _, err := net.SplitHostPort(cfg.Server.HTTPAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid http address %q: %w", cfg.Server.HTTPAddress, err)
		}
		cfg.Server.HTTPAddress = net.JoinHostPort(host, port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Log),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.HTTPAddress, validation.Required, validation.By(validateHostPort)),
		validation.Field(&s.GRPCAddress, validation.By(validateHostPort)),
		validation.Field(&s.IdleTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)),
		validation.Field(&l.Format, validation.Required, validation.In(LogFormatText, LogFormatJSON, LogFormatDev)),
	)
}

func validateHostPort(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return errors.New("must be a string")
	}
	if s == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return errors.New("must be in host:port format")
	}
	if port == "" {
		return errors.New("port is required")
	}
	return nil
}
