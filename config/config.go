// Package config loads runtime configuration from TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/pxt-runtime/errors"
)

// Sink names accepted by Runtime.Sink.
const (
	SinkPanic = "panic"
	SinkHalt  = "halt"
	SinkExit  = "exit"
)

// Config is the content of a runtime TOML file.
type Config struct {
	Program Program `toml:"program"`
	Runtime Runtime `toml:"runtime"`
	Log     Log     `toml:"log"`
}

// Program locates the image to run.
type Program struct {
	Image string `toml:"image"`
	// Events are posted after start, as "source:value" pairs.
	Events []string `toml:"events"`
}

// Runtime tunes the object runtime.
type Runtime struct {
	Sink             string `toml:"sink"`
	PanicCode        int    `toml:"panic-code"`
	EventQueue       int    `toml:"event-queue"`
	MemoryLimitPages uint32 `toml:"memory-limit-pages"`
	TrackObjects     bool   `toml:"track-objects"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Runtime: Runtime{
			Sink:       SinkPanic,
			PanicCode:  42,
			EventQueue: 64,
		},
		Log: Log{Level: "info"},
	}
}

// Load parses the TOML file at path over Default. A relative Program.Image
// is resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if c.Program.Image != "" && !filepath.IsAbs(c.Program.Image) {
		c.Program.Image = filepath.Join(filepath.Dir(path), c.Program.Image)
	}
	return c, nil
}

// Validate rejects unknown sinks and log levels.
func (c *Config) Validate() error {
	switch c.Runtime.Sink {
	case SinkPanic, SinkHalt, SinkExit:
	default:
		return fmt.Errorf("unknown sink %q", c.Runtime.Sink)
	}
	if c.Runtime.EventQueue < 0 {
		return fmt.Errorf("event-queue must not be negative, got %d", c.Runtime.EventQueue)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// Logger builds the configured zap logger.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Sink builds the configured fatal error sink.
func (c *Config) Sink(logger *zap.Logger) errors.Sink {
	switch c.Runtime.Sink {
	case SinkHalt:
		return errors.HaltSink{Logger: logger}
	case SinkExit:
		return errors.ExitSink{Logger: logger, Status: c.Runtime.PanicCode}
	default:
		return errors.PanicSink{Logger: logger}
	}
}
