// Package config loads and validates the server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the environment variable prefix for configuration overrides.
const EnvPrefix = "CONSTRUO"

// Defaults applied by Validate.
const (
	DefaultAddress    = ":8080"
	DefaultCacheDir   = "./data/cache"
	DefaultOutputDir  = "./certificates"
	DefaultEventLabel = "CONSTRUO 2026"
)

// ConfigLoader defines the interface for loading configuration.
type ConfigLoader interface {
	LoadConfig(path string) (*Config, error)
}

// Config is the root configuration structure.
type Config struct {
	Store        StoreConfig        `yaml:"store"`
	Cache        CacheConfig        `yaml:"cache"`
	Server       ServerConfig       `yaml:"server"`
	Certificates CertificatesConfig `yaml:"certificates"`
}

// StoreConfig points at the hosted data store.
type StoreConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
}

// CacheConfig configures the local cache store.
type CacheConfig struct {
	Dir string `yaml:"dir"`
	// Cooldown is the minimum interval between automatic background
	// revalidations, as a duration string. Empty keeps the default.
	Cooldown string `yaml:"cooldown,omitempty"`
}

// ServerConfig configures the public-site API server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// CertificatesConfig configures batch certificate generation.
type CertificatesConfig struct {
	OutputDir  string `yaml:"outputDir"`
	EventLabel string `yaml:"eventLabel,omitempty"`
}

// configLoader implements the ConfigLoader interface.
type configLoader struct{}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader() ConfigLoader {
	return &configLoader{}
}

// LoadConfig loads and parses configuration from a YAML file.
func (*configLoader) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if c.Cache.Cooldown != "" {
		if _, err := time.ParseDuration(c.Cache.Cooldown); err != nil {
			return fmt.Errorf("invalid cache.cooldown: %w", err)
		}
	}
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if c.Certificates.OutputDir == "" {
		c.Certificates.OutputDir = DefaultOutputDir
	}
	if c.Certificates.EventLabel == "" {
		c.Certificates.EventLabel = DefaultEventLabel
	}
	return nil
}

// CooldownOrDefault returns the parsed cooldown, or def when unset.
func (c *Config) CooldownOrDefault(def time.Duration) time.Duration {
	if c.Cache.Cooldown == "" {
		return def
	}
	d, err := time.ParseDuration(c.Cache.Cooldown)
	if err != nil {
		return def
	}
	return d
}
