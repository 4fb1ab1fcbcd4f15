// Package config manages application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config represents the application configuration.
type Config struct {
	Output OutputConfig `yaml:"output"`
	Images ImagesConfig `yaml:"images"`
	Load   LoadConfig   `yaml:"load"`
}

// OutputConfig contains inspect output options.
type OutputConfig struct {
	Format string `yaml:"format"` // json | text
	Pretty bool   `yaml:"pretty"`
}

// ImagesConfig contains image export options.
type ImagesConfig struct {
	Dir string `yaml:"dir"`
}

// LoadConfig contains workbook loading options.
type LoadConfig struct {
	SkipBrokenDrawings bool   `yaml:"skip_broken_drawings"`
	LogLevel           string `yaml:"log_level"` // debug | info | warn | error
}

// 지원하는 출력 형식
const (
	FormatJSON = "json"
	FormatText = "text"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format: FormatText,
			Pretty: true,
		},
		Images: ImagesConfig{
			Dir: "images",
		},
		Load: LoadConfig{
			SkipBrokenDrawings: false,
			LogLevel:           "warn",
		},
	}
}

// Validate checks option values.
func (c *Config) Validate() error {
	switch c.Output.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("unsupported output format: %q (json, text)", c.Output.Format)
	}
	if _, err := ParseLevel(c.Load.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a log level name. An empty name means warn.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unknown log level: %q", name)
	}
}
