// Package config loads the optional .cxxref.yaml project file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file looked up at the repository root.
const FileName = ".cxxref.yaml"

// Config holds project-level settings. Command-line flags override these.
type Config struct {
	// DB is the database path, relative to the project root unless absolute.
	DB string `yaml:"db"`
	// Workers bounds parallel extraction. 0 means runtime.NumCPU().
	Workers int `yaml:"workers"`
	// Parallel enables the parallel parse phase.
	Parallel bool `yaml:"parallel"`
	// Exclude lists directory names skipped while walking.
	Exclude []string `yaml:"exclude,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Extensions restricts indexing to these file extensions. Empty means
	// every C/C++ extension.
	Extensions []string `yaml:"extensions,omitempty"`
	// IncludeDirs are searched for quoted #include headers after the
	// including file's directory. Relative entries are resolved against the
	// project root.
	IncludeDirs []string `yaml:"include_dirs,omitempty"`
}

// DefaultExclude lists the directory names skipped when nothing overrides
// them. Hidden directories are always skipped.
var DefaultExclude = []string{"build", "third_party", "node_modules", "vendor"}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:       filepath.Join(".cxxref", "index.db"),
		Parallel: true,
		Exclude:  slices.Clone(DefaultExclude),
		LogLevel: "warn",
	}
}

// Load reads the config at path on top of Default. A missing file is not an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return nil
}

// Write stores c at path as YAML.
func (c Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ParseLevel maps a level name to a slog.Level. Empty means warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
