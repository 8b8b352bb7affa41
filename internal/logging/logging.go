// Package logging builds the zap logger shared by the commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger writing to stderr. Encoding is "console"
// or "json"; verbose enables debug output.
func New(verbose bool, encoding string) (*zap.Logger, error) {
	var config = zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	switch encoding {
	case "", "console":
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
	default:
		return nil, fmt.Errorf("unknown log encoding %q", encoding)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// WithFile tees logger into a JSON log at path. The returned func syncs
// and closes the file.
func WithFile(logger *zap.Logger, path string, verbose bool) (*zap.Logger, func() error, error) {
	ws, closeFile, err := zap.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log %s: %w", path, err)
	}
	var level = zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	var core = zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), ws, level)
	var res = zap.New(zapcore.NewTee(OrNop(logger).Core(), core))
	var cleanup = func() error {
		defer closeFile()
		return ws.Sync()
	}
	return res, cleanup, nil
}
