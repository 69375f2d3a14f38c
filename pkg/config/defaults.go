package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills unspecified configuration fields with defaults.
//
// Zero values are replaced; explicit values are preserved. Store-specific
// option defaults are handled by the store factories.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Locking.Type == "" {
		cfg.Locking.Type = "memory"
	}
	if cfg.Locking.Timeout == 0 {
		cfg.Locking.Timeout = 10 * time.Second
	}

	if cfg.RateLimit.WritesPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = cfg.RateLimit.WritesPerSecond * 2
	}

	if cfg.GC.Interval == 0 {
		cfg.GC.Interval = 24 * time.Hour
	}

	if len(cfg.Stores) == 0 {
		cfg.Stores = []StoreConfig{{Name: "default", Type: "memory"}}
	}
}
