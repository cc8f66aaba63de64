// Package observability owns logger construction for the CLI and the
// long-running worker.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the shared logger for command-line output. It defaults to a
// console logger at info level; Init reconfigures it from config.
var CLILogger = mustConsoleLogger(zapcore.InfoLevel)

// Init reconfigures CLILogger at the given level ("debug", "info", "warn",
// "error").
func Init(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	CLILogger = mustConsoleLogger(lvl)
	return nil
}

// NewLogger builds a structured JSON logger for injection into long-running
// components.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

func mustConsoleLogger(lvl zapcore.Level) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		// Development config with static options cannot fail to build.
		panic(err)
	}
	return logger
}
