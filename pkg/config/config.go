package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete podstore configuration.
//
// It captures logging, server-wide settings, the named object stores, the
// locking discipline, write throttling, and the pods served by this
// process.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (PODSTORE_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Store Configuration Pattern:
// Each object store implementation defines its own option section. A store
// entry selects an implementation through its Type field, and only the
// matching section is decoded.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings.
	Server ServerConfig `mapstructure:"server"`

	// Stores defines the named object stores pods can reference.
	Stores []StoreConfig `mapstructure:"stores" validate:"dive"`

	// Locking selects the name-locker implementation.
	Locking LockingConfig `mapstructure:"locking"`

	// RateLimit throttles mutating operations across all pods.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Metrics toggles Prometheus metrics collection.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// GC controls the auxiliary-object sweeper.
	GC GCConfig `mapstructure:"gc"`

	// Pods defines the storage spaces served by this process.
	Pods []PodConfig `mapstructure:"pods" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// MetricsConfig toggles Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on metrics collection for storage operations.
	Enabled bool `mapstructure:"enabled"`
}

// GCConfig controls the background sweeper that removes auxiliary
// objects whose host resource is gone.
type GCConfig struct {
	// Enabled turns on background sweeping.
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often each store is swept.
	Interval time.Duration `mapstructure:"interval"`

	// DryRun logs orphans without deleting them.
	DryRun bool `mapstructure:"dry_run"`
}

// StoreConfig defines one named object store.
//
// The Type field selects the implementation; only the matching option
// section is decoded.
type StoreConfig struct {
	// Name is the store's registry name, referenced by pods.
	Name string `mapstructure:"name" validate:"required"`

	// Type selects the object store implementation.
	// Valid values: memory, badger, s3.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3"`

	// Memory contains memory-store options. Used when Type = "memory".
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB options. Used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`

	// S3 contains S3 options. Used when Type = "s3".
	S3 map[string]any `mapstructure:"s3"`
}

// LockingConfig selects the name-locker implementation.
type LockingConfig struct {
	// Type selects the locker. "memory" is the in-process locker; "void"
	// disables locking and is only safe for single-threaded tooling.
	Type string `mapstructure:"type" validate:"required,oneof=memory void"`

	// Timeout bounds how long an operation waits for its name locks.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// RateLimitConfig throttles mutating operations.
type RateLimitConfig struct {
	// WritesPerSecond is the sustained mutation rate across all pods.
	// Zero disables throttling.
	WritesPerSecond uint `mapstructure:"writes_per_second"`

	// Burst is the token-bucket burst capacity.
	Burst uint `mapstructure:"burst"`
}

// PodConfig defines one pod: a storage space plus its backing store and
// policy.
type PodConfig struct {
	// Name is the pod's registry name.
	Name string `mapstructure:"name" validate:"required"`

	// Root is the pod's root container URI. Must end in a slash.
	Root string `mapstructure:"root" validate:"required,endswith=/"`

	// Owners lists the pod's owner identities (WebIDs).
	Owners []string `mapstructure:"owners" validate:"required,min=1,dive,required"`

	// Store names the object store backing the pod.
	Store string `mapstructure:"store" validate:"required"`

	// Description is an optional description-resource URI for the pod.
	Description string `mapstructure:"description"`

	// ReadOnly denies all mutating operations on the pod.
	ReadOnly bool `mapstructure:"read_only"`

	// OwnerOnlyWrites restricts mutating operations to the pod's owners.
	OwnerOnlyWrites bool `mapstructure:"owner_only_writes"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath uses the default location
// ($XDG_CONFIG_HOME/podstore/config.yaml).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures environment variable support and the config file
// search path. Environment variables use the PODSTORE_ prefix, with dots
// replaced by underscores (PODSTORE_LOGGING_LEVEL=DEBUG).
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PODSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if one exists. A missing
// file is not an error; defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory: XDG_CONFIG_HOME if
// set, otherwise ~/.config, falling back to the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "podstore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "podstore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
