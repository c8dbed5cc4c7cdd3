// Package config reads and writes the smartos persistent defaults file,
// ~/.smartos/config.toml. It follows the same load/save/get/set-by-dotted-key
// shape as a typical CLI tool's local config file, backed by TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config represents ~/.smartos/config.toml.
type Config struct {
	Loader    Loader    `toml:"loader,omitempty" json:"loader"`
	Scheduler Scheduler `toml:"scheduler,omitempty" json:"scheduler"`
	LogLevel  string    `toml:"log_level,omitempty" json:"log_level"`
}

// Loader holds the stored loader.* keys. `launcher` and `smartosctl
// run-loader` take their values from arguments and do not read this file.
type Loader struct {
	Policy   string `toml:"policy,omitempty" json:"policy"`
	MaxPages int    `toml:"max_pages,omitempty" json:"max_pages"`
}

// Scheduler holds the stored scheduler.* keys. `scheduler` and `smartosctl
// run-scheduler` take their values from arguments and flags and do not read
// this file.
type Scheduler struct {
	NCPU       int `toml:"ncpu,omitempty" json:"ncpu"`
	TSliceMS   int `toml:"tslice_ms,omitempty" json:"tslice_ms"`
}

// dirOverride is set by --config-dir / SMARTOS_HOME.
var dirOverride string

// SetDir allows the CLI to override the config directory.
func SetDir(dir string) {
	dirOverride = dir
}

// Dir returns the config directory. Precedence: SetDir > SMARTOS_HOME env > ~/.smartos.
func Dir() string {
	if dirOverride != "" {
		return dirOverride
	}
	if v := os.Getenv("SMARTOS_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".smartos")
	}
	return filepath.Join(home, ".smartos")
}

// Path returns the full path to config.toml.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// EnsureDir creates the smartos home directory if it does not exist.
func EnsureDir() error {
	return os.MkdirAll(Dir(), 0o755)
}

// Default returns the built-in defaults used when no config file exists.
func Default() *Config {
	return &Config{
		Loader:    Loader{Policy: "FIFO", MaxPages: 64},
		Scheduler: Scheduler{NCPU: 1, TSliceMS: 100},
		LogLevel:  "info",
	}
}

// Load reads config.toml, falling back to Default() when absent.
func Load() (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	return cfg, nil
}

// Save writes cfg back to config.toml.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(Path(), data, 0o644)
}

var validKeys = map[string]bool{
	"loader.policy":      true,
	"loader.max_pages":   true,
	"scheduler.ncpu":     true,
	"scheduler.tslice_ms": true,
	"log_level":          true,
}

// Get retrieves a single config value by dotted key.
func Get(key string) (string, error) {
	if !validKeys[key] {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	switch key {
	case "loader.policy":
		return cfg.Loader.Policy, nil
	case "loader.max_pages":
		return strconv.Itoa(cfg.Loader.MaxPages), nil
	case "scheduler.ncpu":
		return strconv.Itoa(cfg.Scheduler.NCPU), nil
	case "scheduler.tslice_ms":
		return strconv.Itoa(cfg.Scheduler.TSliceMS), nil
	case "log_level":
		return cfg.LogLevel, nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}

// Set sets a single config value by dotted key and persists it.
func Set(key, value string) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return err
	}
	switch key {
	case "loader.policy":
		cfg.Loader.Policy = value
	case "loader.max_pages":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("loader.max_pages must be an integer: %w", err)
		}
		cfg.Loader.MaxPages = n
	case "scheduler.ncpu":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("scheduler.ncpu must be an integer: %w", err)
		}
		cfg.Scheduler.NCPU = n
	case "scheduler.tslice_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("scheduler.tslice_ms must be an integer: %w", err)
		}
		cfg.Scheduler.TSliceMS = n
	case "log_level":
		cfg.LogLevel = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return Save(cfg)
}
