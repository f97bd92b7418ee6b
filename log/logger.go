// Package log builds the zap loggers used across the bridge and the sinks
// scripts and the access log write to.
package log

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Option configures NewLogger.
type Option func(*loggerConfig)

type loggerConfig struct {
	console    io.Writer
	dir        string
	level      zapcore.Level
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
}

func defaultLoggerConfig() loggerConfig {
	return loggerConfig{
		console:    os.Stdout,
		dir:        "log",
		level:      zap.InfoLevel,
		maxSizeMB:  50,
		maxBackups: 3,
		maxAgeDays: 7,
	}
}

// WithDir sets the directory of the rotating log file. An empty dir disables the file sink.
func WithDir(dir string) Option {
	return func(c *loggerConfig) {
		c.dir = dir
	}
}

// WithLevel sets the minimum level written to every sink.
func WithLevel(level zapcore.Level) Option {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithConsole replaces stdout as the console sink. A nil writer disables it.
func WithConsole(w io.Writer) Option {
	return func(c *loggerConfig) {
		c.console = w
	}
}

// WithRotation overrides the lumberjack rotation limits.
func WithRotation(maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(c *loggerConfig) {
		c.maxSizeMB = maxSizeMB
		c.maxBackups = maxBackups
		c.maxAgeDays = maxAgeDays
	}
}

// NewLogger returns a JSON logger writing to dir/name (rotated) and to the console.
func NewLogger(name string, opts ...Option) (*zap.Logger, error) {
	cfg := defaultLoggerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	var cores []zapcore.Core
	if cfg.dir != "" {
		file, err := rotatingFile(cfg, name)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(enc, file, cfg.level))
	}
	if cfg.console != nil {
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.Lock(zapcore.AddSync(cfg.console)), cfg.level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)).Named(name), nil
}

func rotatingFile(cfg loggerConfig, name string) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(cfg.dir, 0o755); err != nil {
		return nil, err
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.dir, name+".log"),
		MaxSize:    cfg.maxSizeMB,
		MaxBackups: cfg.maxBackups,
		MaxAge:     cfg.maxAgeDays,
	}), nil
}
