package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"monome.org/druid/device"
)

// Config holds the application configuration
type Config struct {
	// Port is the serial port of the device. Empty means find it by Signature.
	Port string `yaml:"port"`
	// Signature is the USB "vvvv:pppp" identity used to find the device
	Signature string `yaml:"signature"`
	// LogFile is the session log, truncated on every start
	LogFile string `yaml:"log_file"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// Plain selects the line-mode shell instead of the full-screen UI
	Plain bool `yaml:"plain"`
	// PadPacketBoundary appends a newline to script lines that fill whole
	// USB packets
	PadPacketBoundary bool `yaml:"pad_packet_boundary"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.Signature = "0483:5740"
		c.LogFile = "druid.log"
		c.LogLevel = "info"
		c.PadPacketBoundary = true
		return nil
	}
}

// WithFile loads configuration from a YAML file. An empty path is skipped;
// a missing file is skipped unless required is set.
func WithFile(path string, required bool) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if port := os.Getenv("DRUID_PORT"); port != "" {
			c.Port = port
		}

		if sig := os.Getenv("DRUID_SIGNATURE"); sig != "" {
			c.Signature = sig
		}

		if file := os.Getenv("DRUID_LOG_FILE"); file != "" {
			c.LogFile = file
		}

		if level := os.Getenv("DRUID_LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if plain := os.Getenv("DRUID_PLAIN"); plain != "" {
			if b, err := strconv.ParseBool(plain); err == nil {
				c.Plain = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "port":
				c.Port = f.Value.String()
			case "signature":
				c.Signature = f.Value.String()
			case "log-file":
				c.LogFile = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "plain":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.Plain = b
				}
			case "pad-packets":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.PadPacketBoundary = b
				}
			}
		})
		return nil
	}
}

// Validate checks values that cannot be checked while loading
func (c *Config) Validate() error {
	if _, err := device.ParseSignature(c.Signature); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
