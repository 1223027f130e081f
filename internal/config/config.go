// Package config loads the YAML configuration of the sicollect command.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/dvbsi"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
)

// Config is the complete command configuration.
type Config struct {
	// Input is a transport stream file, "-" for stdin.
	Input string `yaml:"input"`
	// Tables lists the subscriptions to collect; empty means all.
	Tables []string `yaml:"tables"`
	// Timeout stops a subscription that receives nothing for this long.
	Timeout time.Duration `yaml:"timeout"`

	Log   LogConfig   `yaml:"log"`
	Store StoreConfig `yaml:"store"`
	HTTP  HTTPConfig  `yaml:"http"`
}

// LogConfig configures the zap logger and its file rotation.
type LogConfig struct {
	Level string `yaml:"level"`
	// File enables file logging when set; MaxSize is in megabytes and
	// MaxAge in days.
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// StoreConfig configures the SQLite snapshot store. An empty Path disables it.
type StoreConfig struct {
	Path        string `yaml:"path"`
	Compression string `yaml:"compression"`
}

// HTTPConfig configures the status endpoint. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Input:   "-",
		Timeout: 30 * time.Second,
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Store: StoreConfig{Compression: "zstd"},
	}
}

// Load reads a YAML file over the defaults and normalizes the result.
//
// Parameters:
//   - path: The configuration file
//
// Returns:
//   - Config: The normalized configuration
//   - error: A read or decode error, or ErrInvalidConfig for bad values
func Load(path string) (Config, error) {
	cfg := Default()

	source, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(source, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Write stores cfg as YAML.
func (c Config) Write(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return os.WriteFile(path, out, 0o644)
}

// Normalize validates the configuration, lower-cases names, drops duplicate
// tables and clamps the rotation settings.
func (c *Config) Normalize() error {
	if c.Input == "" {
		c.Input = "-"
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", errs.ErrInvalidConfig, c.Timeout)
	}

	var tables []string
	for _, name := range c.Tables {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, err := dvbsi.TableIDByName(name); err != nil {
			return fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err)
		}
		if !slices.Contains(tables, name) {
			tables = append(tables, name)
		}
	}
	c.Tables = tables

	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q", errs.ErrInvalidConfig, c.Log.Level)
	}
	c.Log.MaxSize = limitMin(1, c.Log.MaxSize)
	c.Log.MaxBackups = limitMin(1, c.Log.MaxBackups)
	c.Log.MaxAge = limitMin(1, c.Log.MaxAge)

	c.Store.Compression = strings.ToLower(c.Store.Compression)
	if _, ok := format.ParseCompressionType(c.Store.Compression); !ok {
		return fmt.Errorf("%w: store compression %q", errs.ErrInvalidConfig, c.Store.Compression)
	}

	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}

	return level
}

// Compression returns the parsed store compression.
func (c *Config) Compression() format.CompressionType {
	ct, ok := format.ParseCompressionType(c.Store.Compression)
	if !ok {
		return format.CompressionNone
	}

	return ct
}

func limitMin(minimum, value int) int {
	if value < minimum {
		return minimum
	}

	return value
}
