// Copyright 2022 dtnet
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides structured logging for the daemon. It is a thin
// wrapper around zap that exposes loggers carrying key-value context. The
// package-level functions log through the root logger configured with Setup.
package log

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

var root = newLogger(zap.NewNop())

// Setup configures the root logger. It must be called before the first log
// entry is written; calling it again replaces the root logger.
func Setup(cfg Config) error {
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableCaller = true
	zc.Sampling = nil
	if cfg.Format == "human" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zl, err := zc.Build()
	if err != nil {
		return err
	}
	root = newLogger(zl)
	return nil
}

// Flush writes out all buffered log entries.
func Flush() {
	_ = root.inner.Sync()
}

// Logger is a handle that writes structured log entries. Context attached
// with New is included in every entry.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

// Level is the severity of a log entry.
type Level = zapcore.Level

// The levels supported by this package.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	ErrorLevel = zapcore.ErrorLevel
)

type logger struct {
	inner *zap.Logger
}

func newLogger(zl *zap.Logger) *logger {
	return &logger{inner: zl}
}

// Root returns the root logger.
func Root() Logger {
	return root
}

// New returns a logger derived from the root logger with the given context
// attached.
func New(ctx ...any) Logger {
	return root.New(ctx...)
}

// Debug logs at debug level through the root logger.
func Debug(msg string, ctx ...any) { root.Debug(msg, ctx...) }

// Info logs at info level through the root logger.
func Info(msg string, ctx ...any) { root.Info(msg, ctx...) }

// Error logs at error level through the root logger.
func Error(msg string, ctx ...any) { root.Error(msg, ctx...) }

// Discard returns a logger that drops all entries. Intended for tests.
func Discard() Logger {
	return newLogger(zap.NewNop())
}

func (l *logger) New(ctx ...any) Logger {
	return newLogger(l.inner.With(fields(ctx)...))
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.inner.Debug(msg, fields(ctx)...)
}

func (l *logger) Info(msg string, ctx ...any) {
	l.inner.Info(msg, fields(ctx)...)
}

func (l *logger) Error(msg string, ctx ...any) {
	l.inner.Error(msg, fields(ctx)...)
}

func (l *logger) Enabled(lvl Level) bool {
	return l.inner.Core().Enabled(lvl)
}

// CtxWith returns a copy of ctx with the given logger attached. It can be
// retrieved with FromCtx.
func CtxWith(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromCtx returns the logger attached to ctx, or the root logger if there is
// none.
func FromCtx(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Root()
}

// SafeLogger returns l, or the root logger if l is nil. This allows types to
// treat their logger field as optional.
func SafeLogger(l Logger) Logger {
	if l == nil {
		return Root()
	}
	return l
}

// HandlePanic logs and re-raises panics. It should be deferred at the start
// of every application goroutine.
func HandlePanic() {
	if msg := recover(); msg != nil {
		root.inner.Error("Panic", zap.Any("msg", msg), zap.Stack("stack"))
		_ = root.inner.Sync()
		panic(msg)
	}
}

func fields(ctx []any) []zap.Field {
	if len(ctx)%2 != 0 {
		ctx = append(ctx, "(MISSING)")
	}
	fs := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = fmt.Sprint(ctx[i])
		}
		fs = append(fs, zap.Any(key, ctx[i+1]))
	}
	return fs
}
