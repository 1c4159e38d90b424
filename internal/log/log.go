// Package log is a thin context-aware wrapper over zap. Call sites pass a
// context so hooks can enrich entries with request-scoped fields.
package log

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Field = zap.Field

var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Any      = zap.Any
	Err      = zap.Error
	Duration = zap.Duration
)

// Hook contributes fields derived from the context to every entry.
type Hook interface {
	Apply(ctx context.Context, message string) []Field
}

type HookFunc func(ctx context.Context, message string) []Field

func (f HookFunc) Apply(ctx context.Context, message string) []Field {
	return f(ctx, message)
}

type logger struct {
	base  *zap.Logger
	hooks []Hook
}

var global atomic.Pointer[logger]

func init() {
	global.Store(&logger{base: zap.NewNop()})
}

// Configure installs the process-wide logger. Passing nil resets to a no-op
// logger.
func Configure(base *zap.Logger, hooks ...Hook) {
	if base == nil {
		base = zap.NewNop()
	}

	global.Store(&logger{base: base, hooks: hooks})
}

// NewDevelopment builds a human-readable logger for CLI use.
func NewDevelopment(level zapcore.Level) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)

	base, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}

	return base
}

func (l *logger) log(ctx context.Context, level zapcore.Level, message string, fields []Field) {
	entry := l.base.Check(level, message)
	if entry == nil {
		return
	}

	for _, hook := range l.hooks {
		fields = append(fields, hook.Apply(ctx, message)...)
	}

	entry.Write(fields...)
}

func Debug(ctx context.Context, message string, fields ...Field) {
	global.Load().log(ctx, zapcore.DebugLevel, message, fields)
}

func Info(ctx context.Context, message string, fields ...Field) {
	global.Load().log(ctx, zapcore.InfoLevel, message, fields)
}

func Warn(ctx context.Context, message string, fields ...Field) {
	global.Load().log(ctx, zapcore.WarnLevel, message, fields)
}

func Error(ctx context.Context, message string, fields ...Field) {
	global.Load().log(ctx, zapcore.ErrorLevel, message, fields)
}
