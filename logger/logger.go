// Package logger provides the session-scoped structured logger used by every
// component of the snapshot engine. It wraps zap the same way the wider
// codebase this engine was carved out of wraps it: a strict *zap.Logger for
// callers that want typed fields, and a *zap.SugaredLogger for callers that
// just want Printf-style convenience.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a per-session logging handle. Unlike a package-level global, a
// Logger is constructed once per client session and threaded explicitly
// through the components that need it, so two sessions in the same process
// never interleave fields under one name.
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger
}

// Options controls how a Logger is constructed.
type Options struct {
	// Debug routes the sugared logger to Debug level instead of Info.
	Debug bool
	// Name tags every line with a "component" field, e.g. "snapshot", "framing".
	Name string
	// FilePath, if non-empty, adds a rotating file sink alongside stderr.
	FilePath string
	// MaxSizeMB, MaxBackups, MaxAgeDays configure the rotating file sink.
	// Zero values fall back to lumberjack's own defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a Logger from Options. A zero-value Options yields an Info-level
// stderr-only logger, which is always safe to construct.
func New(opts Options) *Logger {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}
	if opts.FilePath != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			LocalTime:  true,
		})
		cores = append(cores, zapcore.NewCore(encoder, sink, level))
	}

	core := zapcore.NewTee(cores...)
	zapOpts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)}
	if opts.Name != "" {
		zapOpts = append(zapOpts, zap.Fields(zap.String("component", opts.Name)))
	}

	l := zap.New(core, zapOpts...)
	return &Logger{zap: l, sugar: l.Sugar()}
}

// Nop returns a Logger that discards everything; useful as a safe default
// for tests and for callers that never configured logging explicitly.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), sugar: zap.NewNop().Sugar()}
}

// Named returns a child logger tagged with an additional "component" field,
// mirroring zap.Logger.Named but keeping our JSON "component" key stable.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return Nop().Named(name)
	}
	child := l.zap.With(zap.String("component", name))
	return &Logger{zap: child, sugar: child.Sugar()}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.zap.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.zap.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.zap.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.zap.Error(msg, fields...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.sugar.Error(fmt.Sprintf(format, args...))
}

// Sync flushes any buffered log entries. Callers should defer this from
// whatever owns the Logger's lifetime (usually the client.Facade).
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.zap.Sync()
}
