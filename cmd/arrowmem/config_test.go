package main

import (
	"testing"

	"github.com/23skdu/arrowmem/allocator"
)

func TestValidateConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(&cfg); err != nil {
		t.Errorf("ValidateConfig() error = %v, want nil", err)
	}
}

func TestValidateConfig_InvalidLogFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFormat = "xml"
	if err := ValidateConfig(&cfg); err != ErrInvalidLogFormat {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidLogFormat)
	}
}

func TestValidateConfig_ValidLogFormats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := DefaultConfig()
		cfg.LogFormat = format
		if err := ValidateConfig(&cfg); err != nil {
			t.Errorf("ValidateConfig() with format %q error = %v, want nil", format, err)
		}
	}
}

func TestValidateConfig_InvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "trace"
	if err := ValidateConfig(&cfg); err != ErrInvalidLogLevel {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidLogLevel)
	}
}

func TestValidateConfig_NegativeLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = -1
	if err := ValidateConfig(&cfg); err != ErrInvalidLimit {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidLimit)
	}
}

func TestValidateConfig_NegativeProbeSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProbeSize = -1
	if err := ValidateConfig(&cfg); err != ErrInvalidProbeSize {
		t.Errorf("ValidateConfig() error = %v, want %v", err, ErrInvalidProbeSize)
	}
}

func TestLoadConfig_EnvVars(t *testing.T) {
	t.Setenv("ARROWMEM_LOG_LEVEL", "debug")
	t.Setenv("ARROWMEM_LOG_FORMAT", "console")
	t.Setenv("ARROWMEM_LIMIT", "1048576")
	t.Setenv("ARROWMEM_PROBE_SIZE", "100")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "console" {
		t.Errorf("log settings = %q/%q, want debug/console", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Limit != 1048576 {
		t.Errorf("Limit = %d, want 1048576", cfg.Limit)
	}
	if cfg.ProbeSize != 100 {
		t.Errorf("ProbeSize = %d, want 100", cfg.ProbeSize)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadConfig() = %+v, want %+v", cfg, DefaultConfig())
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("ARROWMEM_LOG_FORMAT", "xml")
	if _, err := LoadConfig(); err != ErrInvalidLogFormat {
		t.Errorf("LoadConfig() error = %v, want %v", err, ErrInvalidLogFormat)
	}

	t.Setenv("ARROWMEM_LOG_FORMAT", "json")
	t.Setenv("ARROWMEM_LIMIT", "lots")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() with unparsable limit succeeded")
	}
}

func TestAllocatorLimit(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.AllocatorLimit(); got != allocator.Unlimited {
		t.Errorf("AllocatorLimit() = %d, want unlimited", got)
	}
	cfg.Limit = 512
	if got := cfg.AllocatorLimit(); got != 512 {
		t.Errorf("AllocatorLimit() = %d, want 512", got)
	}
}
