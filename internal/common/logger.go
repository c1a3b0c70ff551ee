// Package common holds the logging plumbing shared by every component.
package common

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions selects level, encoding and the optional rotating file sink.
type LogOptions struct {
	Level     string
	Format    string // json or console
	File      string
	MaxSizeMB int
	Compress  bool
}

// NewLogger builds a zap logger. When File is set, output is tee'd to a
// lumberjack-rotated file in addition to stderr.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "", "text", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		sink := &lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  maxSize,
			Compress: opts.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Loggable interface for types that support custom logging.
type Loggable interface {
	SetLogger(logger *zap.Logger)
	GetLogger() *zap.Logger
}

// LoggerMixin provides common logging functionality.
type LoggerMixin struct {
	Logger *zap.Logger
}

// NewLoggerMixin creates a new logger mixin with a no-op logger.
func NewLoggerMixin() LoggerMixin {
	return LoggerMixin{
		Logger: zap.NewNop(),
	}
}

// SetLogger sets a custom logger.
func (l *LoggerMixin) SetLogger(logger *zap.Logger) {
	if logger != nil {
		l.Logger = logger
	}
}

// GetLogger returns the logger.
func (l *LoggerMixin) GetLogger() *zap.Logger {
	if l.Logger == nil {
		l.Logger = zap.NewNop()
	}
	return l.Logger
}
