package main

import (
	"errors"

	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/arrowmem/allocator"
)

// Config validation errors
var (
	ErrInvalidLogFormat = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidLimit     = errors.New("limit must not be negative")
	ErrInvalidProbeSize = errors.New("probe_size must not be negative")
)

// Config is read from ARROWMEM_* environment variables.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	// Limit of the probe allocator in bytes; 0 means unlimited.
	Limit     int64 `envconfig:"LIMIT" default:"0"`
	ProbeSize int   `envconfig:"PROBE_SIZE" default:"4096"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		Limit:     0,
		ProbeSize: 4096,
	}
}

// LoadConfig processes ARROWMEM_* variables and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("ARROWMEM", &cfg); err != nil {
		return Config{}, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	if cfg.Limit < 0 {
		return ErrInvalidLimit
	}
	if cfg.ProbeSize < 0 {
		return ErrInvalidProbeSize
	}
	return nil
}

// AllocatorLimit maps the configured limit to an allocator limit.
func (c *Config) AllocatorLimit() int64 {
	if c.Limit == 0 {
		return allocator.Unlimited
	}
	return c.Limit
}
