// Package config reads named configuration values from a property store and
// the process environment.
package config

import (
	"os"
	"sort"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/arrowmem/internal/errors"
	"github.com/23skdu/arrowmem/internal/logging"
)

// Source is a read-only key/value store.
type Source interface {
	Lookup(key string) (string, bool)
}

// Environment reads the process environment.
type Environment struct{}

// Lookup reports the value of the environment variable key.
func (Environment) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapSource is a fixed in-memory source.
type MapSource map[string]string

// Lookup reports the value stored under key.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Sources pairs the property store with the environment store.
// A nil member behaves as an empty source.
type Sources struct {
	Properties Source
	Env        Source
}

// ProcessSources returns the process-wide property store and environment.
func ProcessSources() Sources {
	return Sources{
		Properties: SystemProperties(),
		Env:        Environment{},
	}
}

// Lookup returns the raw value configured for a setting. A non-empty property
// wins; otherwise the environment value is used if the key is set at all. A
// blank property with no environment value is returned as a present blank.
// The boolean is false only when neither store has the key.
func Lookup(src Sources, propKey, envKey string) (string, bool) {
	var blankProp bool
	if src.Properties != nil {
		if v, ok := src.Properties.Lookup(propKey); ok {
			if v != "" {
				return v, true
			}
			blankProp = true
		}
	}
	if src.Env != nil {
		if v, ok := src.Env.Lookup(envKey); ok {
			return v, true
		}
	}
	return "", blankProp
}

// Properties is a concurrency-safe mutable property store.
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewProperties returns an empty store.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// LoadProperties reads a key=value file into a new store.
func LoadProperties(path string) (*Properties, error) {
	p := NewProperties()
	if err := p.Load(path); err != nil {
		return nil, err
	}
	return p, nil
}

// Load merges the entries of a key=value file, overwriting existing keys.
func (p *Properties) Load(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return errors.WrapConfigurationError(err, "load_properties", "cannot read properties file "+path)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range values {
		p.values[k] = v
	}
	return nil
}

// Lookup reports the property stored under key.
func (p *Properties) Lookup(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// Set stores a property value.
func (p *Properties) Set(key, value string) {
	p.mu.Lock()
	p.values[key] = value
	p.mu.Unlock()
}

// Clear removes a property.
func (p *Properties) Clear(key string) {
	p.mu.Lock()
	delete(p.values, key)
	p.mu.Unlock()
}

// Keys returns the stored keys in sorted order.
func (p *Properties) Keys() []string {
	p.mu.RLock()
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	p.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Settings are the process-level knobs of the config package.
type Settings struct {
	// PropertiesFile seeds SystemProperties when set.
	PropertiesFile string `envconfig:"ARROW_PROPERTIES_FILE"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, errors.WrapConfigurationError(err, "load_settings", "invalid environment settings")
	}
	return s, nil
}

// SystemProperties returns the process-wide property store. It is seeded once
// from the file named by ARROW_PROPERTIES_FILE; a missing or unreadable file
// is logged and leaves the store empty.
var SystemProperties = sync.OnceValue(func() *Properties {
	props := NewProperties()

	settings, err := LoadSettings()
	if err != nil {
		logger := logging.Default()
		logger.Warn().Err(err).Msg("ignoring process settings")
		return props
	}
	if settings.PropertiesFile == "" {
		return props
	}
	if err := props.Load(settings.PropertiesFile); err != nil {
		logger := logging.Default()
		logger.Warn().Err(err).Str("path", settings.PropertiesFile).Msg("system properties not loaded")
	}
	return props
})
