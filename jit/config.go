package jit

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config controls the adaptive optimizer.
type Config struct {
	// Enabled is the master switch; when false every invocation runs in
	// the unoptimized tier.
	Enabled bool `toml:"enabled"`

	// HotThreshold is the invocation count at which a function is queued
	// for optimization.
	HotThreshold uint64 `toml:"hot_threshold"`

	// QueueSize bounds the background compilation queue; a full queue
	// drops work rather than stalling the invoker.
	QueueSize int `toml:"queue_size"`

	// StorePath names the sqlite database for persisting functions and
	// compilation records; empty disables persistence.
	StorePath string `toml:"store_path"`

	// LogCompilation logs each function as it is optimized.
	LogCompilation bool `toml:"log_compilation"`
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		HotThreshold: 100,
		QueueSize:    100,
	}
}

// LoadConfig reads a TOML configuration file, filling unset fields from
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("jit: loading config %s: %w", path, err)
	}
	if cfg.HotThreshold == 0 {
		cfg.HotThreshold = DefaultConfig().HotThreshold
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return cfg, nil
}
