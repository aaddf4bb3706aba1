// Package config holds tool configuration with defaults, optional YAML
// overrides, and logger construction.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/bluegatt/pkg/gatt"
)

// Config holds application configuration.
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"info"`
	CallTimeout    time.Duration `yaml:"call_timeout" default:"30s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"60s"`
	EventBacklog   int           `yaml:"event_backlog" default:"128"`
	OutputFormat   string        `yaml:"output_format" default:"table"` // table, json
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// UnmarshalYAML overlays only the keys present in the document, keeping
// defaults for the rest. Durations use Go syntax ("30s", "1m30s").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		LogLevel       string `yaml:"log_level"`
		CallTimeout    string `yaml:"call_timeout"`
		ConnectTimeout string `yaml:"connect_timeout"`
		EventBacklog   *int   `yaml:"event_backlog"`
		OutputFormat   string `yaml:"output_format"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.CallTimeout != "" {
		d, err := time.ParseDuration(raw.CallTimeout)
		if err != nil {
			return fmt.Errorf("invalid call_timeout: %w", err)
		}
		c.CallTimeout = d
	}
	if raw.ConnectTimeout != "" {
		d, err := time.ParseDuration(raw.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("invalid connect_timeout: %w", err)
		}
		c.ConnectTimeout = d
	}
	if raw.EventBacklog != nil {
		c.EventBacklog = *raw.EventBacklog
	}
	if raw.OutputFormat != "" {
		c.OutputFormat = raw.OutputFormat
	}
	return nil
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.EventBacklog <= 0 {
		return fmt.Errorf("event_backlog must be positive, got %d", c.EventBacklog)
	}
	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("invalid output_format %q", c.OutputFormat)
	}
	return nil
}

// SessionOptions converts the configuration into session options.
func (c *Config) SessionOptions() *gatt.Options {
	opts := gatt.DefaultOptions()
	opts.CallTimeout = c.CallTimeout
	opts.ConnectTimeout = c.ConnectTimeout
	opts.EventBacklog = c.EventBacklog
	return opts
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
