// Package config loads the access node daemon configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the on-disk daemon configuration.
type Config struct {
	// ListenAddr is the HTTP listen address of the access node.
	ListenAddr string `yaml:"listenAddr"`

	// DataDir holds the key-value store.
	DataDir string `yaml:"dataDir"`

	// MinimumFreeGB refuses startup below this free-space threshold.
	MinimumFreeGB int `yaml:"minimumFreeGb"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// GatewayURL is the content gateway chunks are fetched from.
	GatewayURL string `yaml:"gatewayUrl"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:    ":8787",
		DataDir:       "data",
		MinimumFreeGB: 1,
		LogLevel:      "info",
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = Default().ListenAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = Default().DataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = Default().LogLevel
	}
	return cfg, nil
}
