// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package commons

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application-wide structured logger. Every component receives
// one at construction; none of them create their own.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	// Benchmark records how long a named operation took.
	Benchmark(name string, elapsed time.Duration)
	Sync() error
}

// loggerOptions collects the optional settings for NewApplicationLogger.
type loggerOptions struct {
	name  string
	path  string
	level string
}

type Option func(*loggerOptions)

// Name sets the logger name, included in every entry.
func Name(name string) Option {
	return func(o *loggerOptions) { o.name = name }
}

// Path enables file output (with rotation) under the given directory.
func Path(path string) Option {
	return func(o *loggerOptions) { o.path = path }
}

// Level sets the minimum log level: debug, info, warn or error.
func Level(level string) Option {
	return func(o *loggerOptions) { o.level = level }
}

type applicationLogger struct {
	sugar *zap.SugaredLogger
}

// NewApplicationLogger builds a zap-backed Logger. Console output always goes
// to stdout; when a Path is configured, entries are also written to a rotated
// file (lumberjack: 100MB per file, 5 backups, 30 days).
func NewApplicationLogger(opts ...Option) (Logger, error) {
	options := &loggerOptions{
		name:  "capturekit",
		level: "info",
	}
	for _, opt := range opts {
		opt(options)
	}

	level, err := zapcore.ParseLevel(options.level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}

	if options.path != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   options.path + "/" + options.name + ".log",
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			fileSink,
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Named(options.name)
	return &applicationLogger{sugar: logger.Sugar()}, nil
}

func (l *applicationLogger) Debug(args ...interface{}) { l.sugar.Debug(args...) }
func (l *applicationLogger) Info(args ...interface{})  { l.sugar.Info(args...) }
func (l *applicationLogger) Warn(args ...interface{})  { l.sugar.Warn(args...) }
func (l *applicationLogger) Error(args ...interface{}) { l.sugar.Error(args...) }

func (l *applicationLogger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}

func (l *applicationLogger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

func (l *applicationLogger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

func (l *applicationLogger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

// Benchmark logs the elapsed time of a named operation at debug level.
func (l *applicationLogger) Benchmark(name string, elapsed time.Duration) {
	l.sugar.Debugf("benchmark: %s took %s", name, elapsed)
}

func (l *applicationLogger) Sync() error {
	return l.sugar.Sync()
}
