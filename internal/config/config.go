package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level shadevm.yaml configuration.
type Config struct {
	// Grid is the default grid used by `run` and by Shade requests that
	// do not specify one.
	Grid GridConfig `yaml:"grid"`

	// Log controls the process logger.
	Log LogConfig `yaml:"log"`

	// Cache configures the SQLite program cache.
	Cache CacheConfig `yaml:"cache"`

	// Server configures the gRPC shading service.
	Server ServerConfig `yaml:"server"`

	// Scene is an optional path to a YAML scene file for the reference
	// host (attributes, options, lights, textures). Relative paths are
	// resolved against the config file's directory.
	Scene string `yaml:"scene,omitempty"`
}

// GridConfig is a grid size in micropolygons; the VM evaluates
// (Width+1)*(Height+1) points.
type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// LogConfig selects the log level ("debug", "info", "warn", "error", "silent").
type LogConfig struct {
	Level string `yaml:"level"`
}

// CacheConfig points at the program cache database.
type CacheConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// ServerConfig is the listen address of the shading service.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

var logLevels = []string{"debug", "info", "warn", "error", "silent"}

// Default returns the configuration used when no shadevm.yaml exists.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a shadevm.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses shadevm.yaml content from bytes.
// The path argument is used for error messages and to resolve Scene.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if cfg.Scene != "" && !filepath.IsAbs(cfg.Scene) && path != "" {
		cfg.Scene = filepath.Join(filepath.Dir(path), cfg.Scene)
	}
	return &cfg, nil
}

// FindConfig searches for shadevm.yaml starting from dir and walking up
// to parent directories. Returns "" and a nil error when none exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		candidate = filepath.Join(dir, "shadevm.yml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Grid.Width < 0 || c.Grid.Height < 0 {
		return fmt.Errorf("%s: grid: width and height must not be negative (got %dx%d)",
			path, c.Grid.Width, c.Grid.Height)
	}
	if c.Log.Level != "" {
		level := strings.ToLower(c.Log.Level)
		ok := false
		for _, l := range logLevels {
			if l == level {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%s: log: unknown level %q (want one of %s)",
				path, c.Log.Level, strings.Join(logLevels, ", "))
		}
	}
	if c.Server.Addr != "" && !strings.Contains(c.Server.Addr, ":") {
		return fmt.Errorf("%s: server: addr %q must be host:port", path, c.Server.Addr)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Grid.Width == 0 {
		c.Grid.Width = DefaultGridWidth
	}
	if c.Grid.Height == 0 {
		c.Grid.Height = DefaultGridHeight
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}
