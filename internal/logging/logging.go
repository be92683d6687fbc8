// Package logging provides structured logging for berkelium on top of zap.
//
// Two cores are tee'd together:
//   - Console (stderr): human-readable, respects the configured level
//   - File (.berkelium/logs/session_<ts>.log): JSON, always at debug level
//
// Usage:
//
//	log, err := logging.Init(logging.ConfigFromEnv(cfg.Logging))
//	if err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	log.Info(logging.EventToolStart, logging.ToolName("read_file"))
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger  = zap.NewNop()
	globalMetrics = NewMetrics()
	globalFile    *os.File
	globalMu      sync.RWMutex
)

// Init builds the process logger and installs it as the global instance.
// It should be called early in main() before any logging occurs.
func Init(cfg Config) (*zap.Logger, error) {
	logger, file, err := New(cfg)
	if err != nil {
		return nil, err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalFile != nil {
		_ = globalFile.Close()
	}
	globalLogger = logger
	globalFile = file
	return logger, nil
}

// New creates a logger without touching the global instance.
// The returned file, if any, must be closed by the caller.
func New(cfg Config) (*zap.Logger, *os.File, error) {
	var cores []zapcore.Core

	if cfg.Console {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			zap.NewAtomicLevelAt(cfg.Level),
		))
	}

	var file *os.File
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		name := fmt.Sprintf("session_%s.log", time.Now().Format("2006-01-02_15-04-05"))
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zap.NewAtomicLevelAt(zapcore.DebugLevel),
		))

		// best effort, the symlink is a convenience
		latest := filepath.Join(cfg.LogDir, "latest.log")
		_ = os.Remove(latest)
		_ = os.Symlink(name, latest)
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil, nil
	}
	return zap.New(zapcore.NewTee(cores...)), file, nil
}

// Global returns the process logger. Never nil: a no-op logger is returned before Init.
func Global() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Named returns a child of the global logger scoped to a component.
func Named(component string) *zap.Logger {
	return Global().Named(component)
}

// GlobalMetrics returns the process-wide metrics collector.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// Close flushes the global logger and closes the session file.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	_ = globalLogger.Sync()
	globalLogger = zap.NewNop()
	if globalFile != nil {
		err := globalFile.Close()
		globalFile = nil
		return err
	}
	return nil
}
