/*
DESCRIPTION
  logger.go provides this module's structured logger, grounded on
  ausocean-av/revid's injected Logger interface (revid.go's Logger
  type: Debug/Info/Warning/Error/Fatal, each taking a message plus
  variadic key-value pairs) and revid/config.Config's Logger field. The
  teacher wires an external ausocean/utils/logging implementation of
  that shape; this module wires go.uber.org/zap's SugaredLogger instead
  (already part of this module's dependency stack) through a
  lumberjack-backed rotating file sink, the same rotation library the
  teacher's go.mod already requires.
*/

// Package obslog is the structured logging facility shared by every
// command in this module.
package obslog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the structured logging contract every internal package and
// command depends on, matching ausocean-av/revid.go's injected Logger
// interface shape.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warning(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Options configures New.
type Options struct {
	// FilePath, when non-empty, routes log output through a rotating
	// file sink instead of stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      zapcore.Level
}

// zapLogger adapts a zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger. With a non-empty opts.FilePath, log entries are
// JSON-encoded and written through a lumberjack rotating sink; otherwise
// they're human-readable on stderr, matching the teacher's convention
// of console output during interactive use and file output for
// unattended capture devices.
func New(opts Options) Logger {
	var core zapcore.Core
	level := opts.Level

	if opts.FilePath != "" {
		sink := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    nonZero(opts.MaxSizeMB, 50),
			MaxBackups: nonZero(opts.MaxBackups, 5),
			MaxAge:     nonZero(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(sink), level)
	} else {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	}

	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{sugar: logger.Sugar()}
}

func nonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func (l *zapLogger) Debug(msg string, args ...interface{})   { l.sugar.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...interface{})    { l.sugar.Infow(msg, args...) }
func (l *zapLogger) Warning(msg string, args ...interface{}) { l.sugar.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...interface{})   { l.sugar.Errorw(msg, args...) }
func (l *zapLogger) Fatal(msg string, args ...interface{})   { l.sugar.Fatalw(msg, args...) }
