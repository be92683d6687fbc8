package logging

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level for console output.
	Level zapcore.Level `yaml:"-" toml:"-"`

	// LevelName is the textual form of Level as written in config files.
	LevelName string `yaml:"level" toml:"level"`

	// LogDir receives one JSON log file per session. Empty disables file logging.
	LogDir string `yaml:"dir" toml:"dir"`

	// Console enables the stderr core.
	Console bool `yaml:"console" toml:"console"`
}

// DefaultLogDir is the default directory for session logs (relative to cwd).
const DefaultLogDir = ".berkelium/logs"

// ParseLevel converts a string to a level, defaulting to warn so the REPL stays quiet.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// DefaultConfig logs warnings to the console and everything to .berkelium/logs.
func DefaultConfig() Config {
	return Config{
		Level:     zapcore.WarnLevel,
		LevelName: "warn",
		LogDir:    DefaultLogDir,
		Console:   true,
	}
}

// ConfigFromEnv applies environment overrides on top of cfg.
//
// Environment variables:
//   - BERKELIUM_DEBUG: "1" forces debug level
//   - BERKELIUM_LOG_LEVEL: console level (debug, info, warn, error)
//   - BERKELIUM_LOG_DIR: session log directory ("-" disables file logging)
func ConfigFromEnv(cfg Config) Config {
	if cfg.LevelName != "" {
		cfg.Level = ParseLevel(cfg.LevelName)
	}
	if level := os.Getenv("BERKELIUM_LOG_LEVEL"); level != "" {
		cfg.Level = ParseLevel(level)
		cfg.LevelName = level
	}
	if os.Getenv("BERKELIUM_DEBUG") == "1" {
		cfg.Level = zapcore.DebugLevel
		cfg.LevelName = "debug"
	}
	if dir := os.Getenv("BERKELIUM_LOG_DIR"); dir != "" {
		if dir == "-" {
			dir = ""
		}
		cfg.LogDir = dir
	}
	return cfg
}

// WithVerbose returns a copy of the config with debug console output.
func (c Config) WithVerbose(enabled bool) Config {
	if enabled {
		c.Level = zapcore.DebugLevel
		c.LevelName = "debug"
	}
	return c
}
